package state

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEmpty(t *testing.T) {
	assert := assert.New(t)

	e := Empty()
	assert.Zero(e.NumChildren())
	assert.Zero(e.NumProperties())
	assert.True(e.Equals(Empty()))
	assert.False(e.Ref().IsEmpty())
}

func TestStructuralEquality(t *testing.T) {
	assert := assert.New(t)

	// Build the same tree twice along different construction orders.
	a := Empty().
		WithChild("x", Empty().WithProperty("p", NewString("v"))).
		WithChild("y", Empty())
	b := Empty().
		WithChild("y", Empty()).
		WithChild("x", Empty().WithProperty("p", NewString("v")))

	assert.True(a.Equals(b))
	assert.Equal(a.Ref(), b.Ref())

	// Insertion order still differs for iteration.
	assert.Equal([]string{"x", "y"}, a.ChildNames())
	assert.Equal([]string{"y", "x"}, b.ChildNames())

	// Content differences are visible.
	assert.False(a.Equals(a.WithProperty("q", Bool(true))))
	assert.False(a.Equals(a.WithoutChild("y")))
	assert.False(a.Equals(a.WithChild("x", Empty())))
	assert.False(a.Equals(nil))
	assert.True((*NodeState)(nil).Equals(nil))
}

func TestFunctionalUpdatesShareSubtrees(t *testing.T) {
	assert := assert.New(t)

	deep := Empty().WithChild("c", Empty().WithProperty("p", Number(1)))
	root := Empty().WithChild("a", deep).WithChild("b", deep)

	updated := root.WithChild("b", Empty())

	// The untouched subtree is physically shared, not rebuilt.
	got, ok := updated.Child("a")
	assert.True(ok)
	assert.True(got == deep)

	// The original is unchanged.
	got, ok = root.Child("b")
	assert.True(ok)
	assert.True(got == deep)
}

func TestWithKeepsPosition(t *testing.T) {
	assert := assert.New(t)

	ns := Empty().
		WithProperty("p1", NewString("a")).
		WithProperty("p2", NewString("b")).
		WithProperty("p1", NewString("c"))
	assert.Equal([]string{"p1", "p2"}, ns.PropertyNames())
	v, ok := ns.Property("p1")
	assert.True(ok)
	assert.True(v.Equals(NewString("c")))

	ns = ns.WithoutProperty("p1").WithProperty("p1", NewString("d"))
	assert.Equal([]string{"p2", "p1"}, ns.PropertyNames())

	// Removing an absent name is a no-op on the same snapshot.
	assert.True(ns == ns.WithoutProperty("nope"))
	assert.True(ns == ns.WithoutChild("nope"))
}

func TestAt(t *testing.T) {
	assert := assert.New(t)

	leaf := Empty().WithProperty("p", Bool(false))
	root := Empty().WithChild("a", Empty().WithChild("b", leaf))

	got, ok := root.At("/")
	assert.True(ok)
	assert.True(got == root)

	got, ok = root.At("/a/b")
	assert.True(ok)
	assert.True(got == leaf)

	_, ok = root.At("/a/c")
	assert.False(ok)
}

func TestUpdateAt(t *testing.T) {
	assert := assert.New(t)

	root := Empty().WithChild("a", Empty().WithChild("b", Empty()))

	updated, err := UpdateAt(root, "/a/b", func(ns *NodeState) (*NodeState, error) {
		return ns.WithProperty("p", Number(7)), nil
	})
	assert.NoError(err)

	got, ok := updated.At("/a/b")
	assert.True(ok)
	v, ok := got.Property("p")
	assert.True(ok)
	assert.True(v.Equals(Number(7)))

	// The original snapshot is untouched.
	got, ok = root.At("/a/b")
	assert.True(ok)
	assert.Zero(got.NumProperties())

	_, err = UpdateAt(root, "/a/missing", func(ns *NodeState) (*NodeState, error) {
		return ns, nil
	})
	assert.Error(err)
}

func TestWalk(t *testing.T) {
	assert := assert.New(t)

	root := Empty().
		WithChild("a", Empty().WithChild("b", Empty())).
		WithChild("c", Empty())

	visited := 0
	err := Walk(root, func(*NodeState) (bool, error) {
		visited++
		return true, nil
	})
	assert.NoError(err)
	assert.Equal(4, visited)

	// Pruning skips the subtree below.
	visited = 0
	err = Walk(root, func(ns *NodeState) (bool, error) {
		visited++
		return ns == root, nil
	})
	assert.NoError(err)
	assert.Equal(3, visited)
}
