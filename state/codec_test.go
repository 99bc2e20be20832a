package state

import (
	"testing"

	"github.com/attic-labs/treekernel/ref"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
)

func TestRecordRoundTrip(t *testing.T) {
	assert := assert.New(t)

	child := Empty().WithProperty("deep", Bool(true))
	ns := Empty().
		WithProperty("p2", NewString("v2")).
		WithProperty("p1", Number(3.5)).
		WithChild("b", child).
		WithChild("a", Empty())

	// Simulate a store: records keyed by ref.
	records := map[ref.Ref][]byte{}
	err := Walk(ns, func(n *NodeState) (bool, error) {
		records[n.Ref()] = EncodeRecord(n)
		return true, nil
	})
	assert.NoError(err)

	var lookup func(r ref.Ref) (*NodeState, error)
	lookup = func(r ref.Ref) (*NodeState, error) {
		data, ok := records[r]
		if !ok {
			return nil, errors.Errorf("missing record %s", r)
		}
		return DecodeRecord(data, lookup)
	}

	decoded, err := DecodeRecord(records[ns.Ref()], lookup)
	assert.NoError(err)

	// Content, ref, and insertion order all survive.
	assert.True(ns.Equals(decoded))
	assert.Equal(ns.Ref(), decoded.Ref())
	assert.Equal([]string{"p2", "p1"}, decoded.PropertyNames())
	assert.Equal([]string{"b", "a"}, decoded.ChildNames())
}

func TestDecodeRecordMalformed(t *testing.T) {
	assert := assert.New(t)

	lookup := func(ref.Ref) (*NodeState, error) {
		return Empty(), nil
	}

	_, err := DecodeRecord([]byte("not json"), lookup)
	assert.Error(err)

	_, err = DecodeRecord([]byte(`{"p":[["p1","zzz"]]}`), lookup)
	assert.Error(err)

	_, err = DecodeRecord([]byte(`{"c":[["a","bogus-ref"]]}`), lookup)
	assert.Error(err)
}
