package project

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseRef(t *testing.T) {
	t.Run("upstream ref", func(t *testing.T) {
		ref, err := ParseRef("^build")
		require.NoError(t, err)
		assert.Equal(t, RefUpstream, ref.Kind)
		assert.Equal(t, "build", ref.Target)
	})

	t.Run("explicit self ref", func(t *testing.T) {
		ref, err := ParseRef("self:lint")
		require.NoError(t, err)
		assert.Equal(t, RefSelf, ref.Kind)
		assert.Equal(t, "lint", ref.Target)
	})

	t.Run("bare shorthand is self", func(t *testing.T) {
		ref, err := ParseRef("lint")
		require.NoError(t, err)
		assert.Equal(t, RefSelf, ref.Kind)
		assert.Equal(t, "lint", ref.Target)
	})

	t.Run("error cases", func(t *testing.T) {
		_, err := ParseRef("^")
		assert.ErrorContains(t, err, "names no target")

		_, err = ParseRef("self:")
		assert.ErrorContains(t, err, "names no target")

		_, err = ParseRef("")
		assert.ErrorContains(t, err, "empty dependency ref")
	})
}

func TestGraphValidate(t *testing.T) {
	g := &Graph{
		Nodes: map[string]*Node{
			"app": {Name: "app"},
			"lib": {Name: "lib"},
		},
		Dependencies: map[string][]Dependency{
			"app": {{Target: "lib", Type: EdgeStatic}},
		},
	}
	assert.NoError(t, g.Validate())

	g.Dependencies["app"] = append(g.Dependencies["app"], Dependency{Target: "ghost", Type: EdgeStatic})
	assert.ErrorContains(t, g.Validate(), "unknown project")
}

func TestBuildDependenciesOf(t *testing.T) {
	g := &Graph{
		Nodes: map[string]*Node{
			"app": {Name: "app"}, "a": {Name: "a"}, "b": {Name: "b"}, "c": {Name: "c"},
		},
		Dependencies: map[string][]Dependency{
			"app": {
				{Target: "b", Type: EdgeStatic},
				{Target: "a", Type: EdgeStatic},
				{Target: "c", Type: EdgeDynamic},
			},
		},
	}

	t.Run("static only by default, sorted", func(t *testing.T) {
		assert.Equal(t, []string{"a", "b"}, g.BuildDependenciesOf("app", false))
	})

	t.Run("dynamic edges opt in", func(t *testing.T) {
		assert.Equal(t, []string{"a", "b", "c"}, g.BuildDependenciesOf("app", true))
	})

	t.Run("implicit edges never expand", func(t *testing.T) {
		g.Dependencies["app"] = append(g.Dependencies["app"], Dependency{Target: "a", Type: EdgeImplicit})
		assert.Equal(t, []string{"a", "b", "c"}, g.BuildDependenciesOf("app", true))
	})
}
