package kernel

import (
	"testing"

	"github.com/attic-labs/treekernel/state"
	"github.com/stretchr/testify/assert"
)

func TestOpString(t *testing.T) {
	assert := assert.New(t)

	assert.Equal("+/a/b:{}", AddNode("/a/b").String())
	assert.Equal("-/a/b", RemoveNode("/a/b").String())
	assert.Equal("^/a/p:v", SetProperty("/a", "p", state.NewString("v")).String())
	assert.Equal("^/a/p:null", RemoveProperty("/a", "p").String())
	assert.Equal(">/a:/b/c", Move("/a", "/b/c").String())
	assert.Equal("*/a:/b/c", Copy("/a", "/b/c").String())
}

func TestOpRebased(t *testing.T) {
	assert := assert.New(t)

	// Session-relative to store-absolute.
	op := AddNode("/root/n").Rebased("/", "/test")
	assert.Equal("/test/root/n", op.Path)

	op = Move("/a", "/b").Rebased("/", "/test")
	assert.Equal("/test/a", op.Source)
	assert.Equal("/test/b", op.Dest)

	// Workspace at the store root is the identity.
	op = AddNode("/a").Rebased("/", "/")
	assert.Equal("/a", op.Path)

	// The workspace root itself maps to the prefix.
	op = SetProperty("/", "p", state.Bool(true)).Rebased("/", "/test")
	assert.Equal("/test", op.Path)
}

func TestRevisionParse(t *testing.T) {
	assert := assert.New(t)

	rev := NewRevision(7, state.Empty().Ref())
	parsed, err := ParseRevision(rev.String())
	assert.NoError(err)
	assert.True(rev.Equals(parsed))

	for _, bad := range []string{"", "7", "r7", "rx-sha1-00", "r7-bogus"} {
		_, err := ParseRevision(bad)
		assert.Error(err, "input %q", bad)
	}
}
