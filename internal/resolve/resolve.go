// Package resolve substitutes parameter values and upstream artifact names
// into templates and derives the content-addressed artifact name for the
// result. Everything here is a pure function of its inputs: identical
// resolved SQL always yields the identical artifact name.
package resolve

import (
	"fmt"
	"strings"

	"github.com/leapstack-labs/warepipe/internal/template"
)

// MissingParameterError reports a free parameter with no caller-supplied
// value at resolution time. There is no defaulting.
type MissingParameterError struct {
	Template string
	Param    string
}

func (e *MissingParameterError) Error() string {
	return fmt.Sprintf("template %q: no value supplied for parameter {%s}", e.Template, e.Param)
}

// Resolved is a template with every substitution applied.
type Resolved struct {
	Template *template.Template
	// Text is the raw text with all parameters and references substituted.
	Text string
	// Hash is the truncated content digest of Text.
	Hash string
	// ArtifactName is "<template name>_<hash>", the stable identifier of
	// this template's output.
	ArtifactName string
	// FullName is the fully qualified table name, project.dataset.artifact.
	FullName string
}

// Namer maps resolved SQL text to deterministic artifact and table names.
type Namer struct {
	Project string
	Dataset string
	// HashLen is the digest truncation length; DefaultHashLen when zero.
	HashLen int
}

// Resolve substitutes each free parameter from params and each reference
// token from refs (target name -> fully qualified table name of the
// already-resolved target). Substitution is textual and single-pass:
// substituted values are never re-scanned for further tokens.
func (n Namer) Resolve(tmpl *template.Template, params map[string]string, refs map[string]string) (*Resolved, error) {
	toks, err := template.Tokens(tmpl.RawText)
	if err != nil {
		return nil, err
	}

	var b strings.Builder
	last := 0
	for _, tok := range toks {
		b.WriteString(tmpl.RawText[last:tok.Start])

		if tok.IsRef() {
			val, ok := refs[tok.Name]
			if !ok {
				return nil, fmt.Errorf("template %q: referenced template %q has no resolved artifact name", tmpl.Name, tok.Name)
			}
			b.WriteString(val)
		} else {
			val, ok := params[tok.Name]
			if !ok {
				return nil, &MissingParameterError{Template: tmpl.Name, Param: tok.Name}
			}
			b.WriteString(val)
		}

		last = tok.End
	}
	b.WriteString(tmpl.RawText[last:])

	text := b.String()
	hash := ShortHash(text, n.hashLen())
	artifact := tmpl.Name + "_" + hash

	return &Resolved{
		Template:     tmpl,
		Text:         text,
		Hash:         hash,
		ArtifactName: artifact,
		FullName:     n.FullName(artifact),
	}, nil
}

// FullName qualifies an artifact name with the configured project and
// dataset. Empty components are omitted, which keeps pure planning usable
// without warehouse configuration.
func (n Namer) FullName(artifact string) string {
	parts := make([]string, 0, 3)
	if n.Project != "" {
		parts = append(parts, n.Project)
	}
	if n.Dataset != "" {
		parts = append(parts, n.Dataset)
	}
	return strings.Join(append(parts, artifact), ".")
}

func (n Namer) hashLen() int {
	if n.HashLen > 0 {
		return n.HashLen
	}
	return DefaultHashLen
}
