// Package template provides SQL template loading and token parsing.
// A template is one .sql file whose text may contain free parameters
// ({name}) and references to other templates ({other.full_name}).
package template

import (
	"strings"
)

// AttrFullName resolves to the referenced template's fully qualified
// output table name. It is the only supported reference attribute.
const AttrFullName = "full_name"

// supportedAttributes is the closed set of reference attributes,
// checked at parse time.
var supportedAttributes = map[string]bool{
	AttrFullName: true,
}

// Template is one named unit of parameterized SQL.
type Template struct {
	// Name is the source file's base name without the .sql extension,
	// unique within a run.
	Name string
	// RawText is the unsubstituted SQL source.
	RawText string
	// Params are the free parameter names found in RawText, in first
	// occurrence order, deduplicated.
	Params []string
	// Refs are the cross-template references found in RawText, in first
	// occurrence order, deduplicated.
	Refs []Ref
}

// Ref is a reference to another template's attribute.
type Ref struct {
	Target    string
	Attribute string
}

// Token is one {...} substitution site in raw template text.
// Start and End are byte offsets spanning the braces.
type Token struct {
	Start int
	End   int
	Name  string
	// Attribute is empty for a free parameter.
	Attribute string
}

// IsRef reports whether the token references another template.
func (t Token) IsRef() bool { return t.Attribute != "" }

// Parse scans raw template text for substitution tokens and returns the
// parsed descriptor. It is a pure function of its input.
func Parse(name, raw string) (*Template, error) {
	toks, err := Tokens(raw)
	if err != nil {
		if serr, ok := err.(*SyntaxError); ok {
			serr.Template = name
		}
		return nil, err
	}

	tmpl := &Template{Name: name, RawText: raw}
	seenParams := make(map[string]bool)
	seenRefs := make(map[Ref]bool)
	for _, tok := range toks {
		if tok.IsRef() {
			if !supportedAttributes[tok.Attribute] {
				return nil, &UnsupportedAttributeError{
					Template:  name,
					Target:    tok.Name,
					Attribute: tok.Attribute,
				}
			}
			ref := Ref{Target: tok.Name, Attribute: tok.Attribute}
			if !seenRefs[ref] {
				tmpl.Refs = append(tmpl.Refs, ref)
				seenRefs[ref] = true
			}
			continue
		}
		if !seenParams[tok.Name] {
			tmpl.Params = append(tmpl.Params, tok.Name)
			seenParams[tok.Name] = true
		}
	}
	return tmpl, nil
}

// Tokens scans text and returns every substitution token in order of
// occurrence. The same scanner backs both discovery (Parse) and
// substitution, so the two cannot drift apart.
func Tokens(text string) ([]Token, error) {
	var toks []Token
	i := 0
	for i < len(text) {
		switch text[i] {
		case '{':
			end := strings.IndexByte(text[i+1:], '}')
			nextOpen := strings.IndexByte(text[i+1:], '{')
			if end < 0 || (nextOpen >= 0 && nextOpen < end) {
				return nil, &SyntaxError{Offset: i, Reason: "unclosed '{'"}
			}
			body := text[i+1 : i+1+end]
			tok, ok := parseToken(body, i, i+end+2)
			if !ok {
				return nil, &SyntaxError{Offset: i, Reason: "malformed token {" + body + "}"}
			}
			toks = append(toks, tok)
			i += end + 2
		case '}':
			return nil, &SyntaxError{Offset: i, Reason: "'}' without matching '{'"}
		default:
			i++
		}
	}
	return toks, nil
}

// parseToken validates a token body of the form "name" or "name.attribute".
func parseToken(body string, start, end int) (Token, bool) {
	name, attr, hasAttr := strings.Cut(body, ".")
	if !isIdent(name) {
		return Token{}, false
	}
	if hasAttr && !isIdent(attr) {
		return Token{}, false
	}
	return Token{Start: start, End: end, Name: name, Attribute: attr}, true
}

// isIdent reports whether s is a valid identifier: letters, digits and
// underscores, not starting with a digit.
func isIdent(s string) bool {
	if s == "" {
		return false
	}
	for i, r := range s {
		switch {
		case r == '_', r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z':
		case r >= '0' && r <= '9':
			if i == 0 {
				return false
			}
		default:
			return false
		}
	}
	return true
}
