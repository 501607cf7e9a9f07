package request

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAllFoundRequiresEveryDescendant(t *testing.T) {
	root := NewNode("node", 4, 1)
	child := NewNode("core", 2, 1)
	root.AddChild(child)

	assert.False(t, root.AllFound())

	root.RecordFound(4)
	assert.False(t, root.AllFound(), "child still unmet")

	child.RecordFound(2)
	assert.True(t, root.AllFound())
}

func TestResetClearsWholeTree(t *testing.T) {
	root := NewNode("node", 1, 1)
	child := NewNode("core", 1, 1)
	root.AddChild(child)
	root.RecordFound(1)
	child.RecordFound(1)

	root.Reset()
	assert.Equal(t, 0, root.NFound())
	assert.Equal(t, 0, child.NFound())
}

func TestDurationDefaultsToOneWithoutWindow(t *testing.T) {
	n := NewNode("node", 1, 1)
	assert.EqualValues(t, 1, n.Duration())

	n.WithWindow(10, 60)
	assert.EqualValues(t, 50, n.Duration())
}

func TestValidateRejectsExclusiveWithSize(t *testing.T) {
	n := NewNode("node", 1, 2).WithExclusive(true)
	require.Error(t, n.Validate())

	ok := NewNode("node", 1, 2)
	require.NoError(t, ok.Validate())
}
