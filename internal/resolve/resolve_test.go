package resolve

import (
	"errors"
	"regexp"
	"testing"

	"github.com/leapstack-labs/warepipe/internal/template"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustParse(t *testing.T, name, raw string) *template.Template {
	t.Helper()
	tmpl, err := template.Parse(name, raw)
	require.NoError(t, err)
	return tmpl
}

func TestResolve_Parameters(t *testing.T) {
	n := Namer{Project: "proj", Dataset: "ds"}
	tmpl := mustParse(t, "main_colors", "SELECT color FROM trees WHERE count > {threshold}")

	r, err := n.Resolve(tmpl, map[string]string{"threshold": "100"}, nil)
	require.NoError(t, err)

	assert.Equal(t, "SELECT color FROM trees WHERE count > 100", r.Text)
	assert.Regexp(t, regexp.MustCompile(`^main_colors_[a-z2-7]{6}$`), r.ArtifactName)
	assert.Equal(t, "proj.ds."+r.ArtifactName, r.FullName)
}

func TestResolve_References(t *testing.T) {
	n := Namer{Project: "proj", Dataset: "ds"}
	tmpl := mustParse(t, "main_color_trees", "SELECT * FROM {main_colors.full_name}")

	r, err := n.Resolve(tmpl, nil, map[string]string{"main_colors": "proj.ds.main_colors_xe33ey"})
	require.NoError(t, err)

	assert.Equal(t, "SELECT * FROM proj.ds.main_colors_xe33ey", r.Text)
}

func TestResolve_MissingParameter(t *testing.T) {
	n := Namer{}
	tmpl := mustParse(t, "t", "SELECT {threshold}")

	_, err := n.Resolve(tmpl, map[string]string{}, nil)
	require.Error(t, err)

	var missErr *MissingParameterError
	require.True(t, errors.As(err, &missErr), "expected *MissingParameterError, got %T", err)
	assert.Equal(t, "t", missErr.Template)
	assert.Equal(t, "threshold", missErr.Param)
}

func TestResolve_UnresolvedDependency(t *testing.T) {
	n := Namer{}
	tmpl := mustParse(t, "t", "SELECT * FROM {upstream.full_name}")

	_, err := n.Resolve(tmpl, nil, map[string]string{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "upstream")
}

func TestResolve_Deterministic(t *testing.T) {
	n := Namer{Project: "p", Dataset: "d"}
	tmpl := mustParse(t, "t", "SELECT {a}, {b} FROM x")
	params := map[string]string{"a": "1", "b": "2"}

	first, err := n.Resolve(tmpl, params, nil)
	require.NoError(t, err)

	for i := 0; i < 20; i++ {
		again, err := n.Resolve(tmpl, params, nil)
		require.NoError(t, err)
		assert.Equal(t, first.Text, again.Text)
		assert.Equal(t, first.ArtifactName, again.ArtifactName)
	}
}

func TestResolve_Sensitivity(t *testing.T) {
	n := Namer{}
	params := map[string]string{"threshold": "100"}

	base, err := n.Resolve(mustParse(t, "t", "SELECT a FROM x WHERE a > {threshold}"), params, nil)
	require.NoError(t, err)

	// One changed character in the SQL changes the artifact name.
	changed, err := n.Resolve(mustParse(t, "t", "SELECT b FROM x WHERE a > {threshold}"), params, nil)
	require.NoError(t, err)
	assert.NotEqual(t, base.ArtifactName, changed.ArtifactName)

	// A changed parameter value changes it too.
	bumped, err := n.Resolve(mustParse(t, "t", "SELECT a FROM x WHERE a > {threshold}"), map[string]string{"threshold": "101"}, nil)
	require.NoError(t, err)
	assert.NotEqual(t, base.ArtifactName, bumped.ArtifactName)
}

func TestResolve_SinglePass(t *testing.T) {
	// A parameter value that looks like a token stays literal: substituted
	// text is never re-scanned.
	n := Namer{}
	tmpl := mustParse(t, "t", "SELECT {a}")

	r, err := n.Resolve(tmpl, map[string]string{"a": "{b}"}, nil)
	require.NoError(t, err)
	assert.Equal(t, "SELECT {b}", r.Text)
}

func TestResolve_DuplicateTokensAllSubstituted(t *testing.T) {
	n := Namer{}
	tmpl := mustParse(t, "t", "SELECT {a} UNION SELECT {a}")

	r, err := n.Resolve(tmpl, map[string]string{"a": "1"}, nil)
	require.NoError(t, err)
	assert.Equal(t, "SELECT 1 UNION SELECT 1", r.Text)
}

func TestShortHash(t *testing.T) {
	h := ShortHash("SELECT 1", DefaultHashLen)
	assert.Len(t, h, 6)
	assert.Regexp(t, regexp.MustCompile(`^[a-z2-7]+$`), h)
	assert.Equal(t, h, ShortHash("SELECT 1", DefaultHashLen))
	assert.NotEqual(t, h, ShortHash("SELECT 2", DefaultHashLen))

	assert.Len(t, ShortHash("SELECT 1", 12), 12)
}

func TestNamer_HashLenConfigurable(t *testing.T) {
	n := Namer{HashLen: 10}
	tmpl := mustParse(t, "t", "SELECT 1")

	r, err := n.Resolve(tmpl, nil, nil)
	require.NoError(t, err)
	assert.Len(t, r.Hash, 10)
}

func TestNamer_FullName(t *testing.T) {
	assert.Equal(t, "p.d.t_abc", Namer{Project: "p", Dataset: "d"}.FullName("t_abc"))
	assert.Equal(t, "d.t_abc", Namer{Dataset: "d"}.FullName("t_abc"))
	assert.Equal(t, "t_abc", Namer{}.FullName("t_abc"))
}
