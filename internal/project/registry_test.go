package project

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestRegistry(t *testing.T) {
	t.Run("Creates the default project up front", func(t *testing.T) {
		r := NewRegistry("", 0.01, zap.NewNop())
		assert.Equal(t, []string{DefaultProjectName}, r.Names())
		p, err := r.Get("")
		require.NoError(t, err)
		assert.Same(t, r.Default(), p)
	})

	t.Run("Returns the same project for the same name", func(t *testing.T) {
		r := NewRegistry("main", 0.01, zap.NewNop())
		first := r.GetOrCreate("agents")
		second := r.GetOrCreate("agents")
		assert.Same(t, first, second)
		assert.Equal(t, []string{"agents", "main"}, r.Names())
		assert.Len(t, r.Projects(), 2)
	})

	t.Run("Reports unknown projects", func(t *testing.T) {
		r := NewRegistry("", 0.01, zap.NewNop())
		_, err := r.Get("missing")
		assert.ErrorIs(t, err, ErrProjectNotFound)
	})
}
