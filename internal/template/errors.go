package template

import "fmt"

// SyntaxError reports a malformed substitution token.
type SyntaxError struct {
	Template string
	Offset   int
	Reason   string
}

func (e *SyntaxError) Error() string {
	if e.Template == "" {
		return fmt.Sprintf("syntax error at offset %d: %s", e.Offset, e.Reason)
	}
	return fmt.Sprintf("template %q: syntax error at offset %d: %s", e.Template, e.Offset, e.Reason)
}

// UnsupportedAttributeError reports a reference using an attribute outside
// the supported set.
type UnsupportedAttributeError struct {
	Template  string
	Target    string
	Attribute string
}

func (e *UnsupportedAttributeError) Error() string {
	return fmt.Sprintf("template %q: reference {%s.%s} uses unsupported attribute (supported: %s)",
		e.Template, e.Target, e.Attribute, AttrFullName)
}
