package builtin

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestByName(t *testing.T) {
	list, err := ByName([]string{"Read", "Write", "Read", "Bash"}, t.TempDir())
	require.NoError(t, err)

	var names []string
	for _, tool := range list {
		names = append(names, tool.Name())
	}
	assert.Equal(t, []string{"Read", "Write", "Bash"}, names)

	_, err = ByName([]string{"Edit"}, t.TempDir())
	assert.ErrorContains(t, err, `unknown tool "Edit"`)
}

func TestRegistry(t *testing.T) {
	reg, err := Registry(DefaultNames, t.TempDir())
	require.NoError(t, err)
	assert.Equal(t, []string{"Read", "Write"}, reg.List())
}
