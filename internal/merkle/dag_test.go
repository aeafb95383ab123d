package merkle

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestAddIsIdempotent(t *testing.T) {
	dag := NewDAG()

	id1 := dag.Add("hello", "")
	id2 := dag.Add("hello", "")

	require.Equal(t, id1, id2)
	require.Equal(t, 1, dag.Len())
	require.Equal(t, []string{id1}, dag.Roots())
}

func TestAddWithParent(t *testing.T) {
	dag := NewDAG()

	rootID := dag.Add("root", "")
	childID := dag.Add("child", rootID)

	require.Equal(t, []string{rootID}, dag.Roots())
	require.Equal(t, []string{childID}, dag.Leaves())

	child := dag.Get(childID)
	require.NotNil(t, child)
	require.Equal(t, []string{rootID}, child.Parents)

	root := dag.Get(rootID)
	require.Equal(t, []string{childID}, root.Children)
}

func TestAddWithMissingParentCreatesOrphan(t *testing.T) {
	dag := NewDAG()

	id := dag.Add("orphan", "no-such-parent")

	node := dag.Get(id)
	require.NotNil(t, node)
	require.Empty(t, node.Parents)
	require.Empty(t, dag.Roots())
}

func TestIdentityIsContentDerived(t *testing.T) {
	dag := NewDAG()

	id := dag.Add("payload", "")
	require.Equal(t, HashData("payload"), id)
	require.Len(t, id, 64)
}

func TestSerializeRoundTrip(t *testing.T) {
	dag := NewDAG()
	rootID := dag.Add("root", "")
	dag.Add("a", rootID)
	dag.Add("b", rootID)
	dag.Add("loose", "")

	data, err := dag.Serialize()
	require.NoError(t, err)

	restored, err := Deserialize(data)
	require.NoError(t, err)

	require.Equal(t, dag.Len(), restored.Len())
	require.Equal(t, dag.Roots(), restored.Roots())
	require.Equal(t, dag.Leaves(), restored.Leaves())

	for _, n := range dag.AllNodes() {
		got := restored.Get(n.ID)
		require.NotNil(t, got)
		require.Equal(t, n.Data, got.Data)
		require.Equal(t, n.Parents, got.Parents)
		require.Equal(t, n.Children, got.Children)
	}
}

func TestCompare(t *testing.T) {
	a := NewDAG()
	a.Add("shared", "")
	removedID := a.Add("only-in-a", "")

	b := NewDAG()
	b.Add("shared", "")
	addedID := b.Add("only-in-b", "")

	diff := Compare(a, b)
	require.Equal(t, []string{addedID}, diff.Added)
	require.Equal(t, []string{removedID}, diff.Removed)
	require.Empty(t, diff.Modified)
}

func TestCompareIdentical(t *testing.T) {
	a := NewDAG()
	a.Add("x", "")
	b := NewDAG()
	b.Add("x", "")

	diff := Compare(a, b)
	require.Empty(t, diff.Added)
	require.Empty(t, diff.Removed)
	require.Empty(t, diff.Modified)
}
