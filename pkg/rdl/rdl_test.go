package rdl_test

import (
	"testing"

	"github.com/quartzsched/quartz/pkg/rdl"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const doc = `
root:
  type: cluster
  name: c0
  capacity: 1
  children:
    - type: node
      name: node0
      capacity: 4
      hostname: node0.local
      digest: abc123
      rank: 7
      tags: [gpu]
    - type: node
      name: node1
      capacity: 4
      hostname: node1.local
      digest: def456
`

func TestParseBuildsTreeShape(t *testing.T) {
	tree, ranks, err := rdl.Parse([]byte(doc), nil)
	require.NoError(t, err)

	require.Equal(t, "cluster", tree.Root.Type)
	require.Len(t, tree.Root.Children, 2)
	assert.Equal(t, "node0", tree.Root.Children[0].Name)
	assert.True(t, tree.Root.Children[0].HasTag("gpu"))

	rank, ok := ranks.Lookup("node0.local", "abc123")
	require.True(t, ok)
	assert.EqualValues(t, 7, rank)

	_, ok = ranks.Lookup("node1.local", "def456")
	assert.False(t, ok, "node1 carried no rank in the document")
}

func TestSerializeRoundTripsShape(t *testing.T) {
	tree, _, err := rdl.Parse([]byte(doc), nil)
	require.NoError(t, err)

	out, err := rdl.Serialize(tree)
	require.NoError(t, err)

	reparsed, _, err := rdl.Parse(out, nil)
	require.NoError(t, err)

	assert.Equal(t, tree.Root.Type, reparsed.Root.Type)
	assert.Equal(t, tree.Root.Name, reparsed.Root.Name)
	require.Len(t, reparsed.Root.Children, 2)
	assert.Equal(t, tree.Root.Children[0].Name, reparsed.Root.Children[0].Name)
	assert.Equal(t, tree.Root.Children[1].Name, reparsed.Root.Children[1].Name)
}

func TestParseRejectsMalformedYAML(t *testing.T) {
	_, _, err := rdl.Parse([]byte("root: [this, is, not, a, mapping]"), nil)
	assert.Error(t, err)
}
