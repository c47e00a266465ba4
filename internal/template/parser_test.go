package template

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse_FreeParameters(t *testing.T) {
	tmpl, err := Parse("main_colors", "SELECT color FROM trees WHERE count > {threshold} AND height > {threshold} LIMIT {max_rows}")
	require.NoError(t, err)

	assert.Equal(t, "main_colors", tmpl.Name)
	// Duplicate occurrences collapse into one logical parameter.
	assert.Equal(t, []string{"threshold", "max_rows"}, tmpl.Params)
	assert.Empty(t, tmpl.Refs)
}

func TestParse_References(t *testing.T) {
	tmpl, err := Parse("main_color_trees", "SELECT * FROM {main_colors.full_name} JOIN {species.full_name} USING (color)")
	require.NoError(t, err)

	assert.Empty(t, tmpl.Params)
	assert.Equal(t, []Ref{
		{Target: "main_colors", Attribute: AttrFullName},
		{Target: "species", Attribute: AttrFullName},
	}, tmpl.Refs)
}

func TestParse_MixedTokens(t *testing.T) {
	tmpl, err := Parse("t", "SELECT * FROM {base.full_name} WHERE x > {threshold}")
	require.NoError(t, err)

	assert.Equal(t, []string{"threshold"}, tmpl.Params)
	assert.Equal(t, []Ref{{Target: "base", Attribute: AttrFullName}}, tmpl.Refs)
}

func TestParse_NoTokens(t *testing.T) {
	tmpl, err := Parse("static", "SELECT 1")
	require.NoError(t, err)
	assert.Empty(t, tmpl.Params)
	assert.Empty(t, tmpl.Refs)
}

func TestParse_UnsupportedAttribute(t *testing.T) {
	_, err := Parse("t", "SELECT * FROM {base.table_id}")
	require.Error(t, err)

	var attrErr *UnsupportedAttributeError
	require.True(t, errors.As(err, &attrErr), "expected *UnsupportedAttributeError, got %T", err)
	assert.Equal(t, "t", attrErr.Template)
	assert.Equal(t, "base", attrErr.Target)
	assert.Equal(t, "table_id", attrErr.Attribute)
}

func TestParse_UnbalancedBraces(t *testing.T) {
	cases := map[string]string{
		"unclosed open":    "SELECT {threshold FROM x",
		"stray close":      "SELECT threshold} FROM x",
		"nested open":      "SELECT {a{b}} FROM x",
		"empty token":      "SELECT {} FROM x",
		"leading digit":    "SELECT {1abc} FROM x",
		"double attribute": "SELECT {a.b.c} FROM x",
		"space in token":   "SELECT {a b} FROM x",
	}

	for name, raw := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Parse("t", raw)
			require.Error(t, err)

			var synErr *SyntaxError
			require.True(t, errors.As(err, &synErr), "expected *SyntaxError, got %T", err)
			assert.Equal(t, "t", synErr.Template)
		})
	}
}

func TestTokens_Offsets(t *testing.T) {
	raw := "SELECT {a} FROM {b.full_name}"
	toks, err := Tokens(raw)
	require.NoError(t, err)
	require.Len(t, toks, 2)

	assert.Equal(t, "{a}", raw[toks[0].Start:toks[0].End])
	assert.False(t, toks[0].IsRef())
	assert.Equal(t, "{b.full_name}", raw[toks[1].Start:toks[1].End])
	assert.True(t, toks[1].IsRef())
}
