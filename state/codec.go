package state

import (
	"encoding/json"

	"github.com/attic-labs/treekernel/ref"
	"github.com/pkg/errors"
)

/*
  Node record serialization, one record per node:

    {"p":[[name, taggedValue], ...],
     "c":[[name, childRef], ...]}

  Pairs appear in insertion order, so a decoded node iterates the way
  it did when written. Children are referenced by content address; a
  subtree shared between revisions is stored once.
*/

type record struct {
	Props    [][2]string `json:"p,omitempty"`
	Children [][2]string `json:"c,omitempty"`
}

// EncodeRecord serializes a single node, with children by ref.
func EncodeRecord(ns *NodeState) []byte {
	rec := record{}
	for _, name := range ns.propNames {
		rec.Props = append(rec.Props, [2]string{name, encodeValue(ns.props[name])})
	}
	for _, name := range ns.childNames {
		rec.Children = append(rec.Children, [2]string{name, ns.children[name].Ref().String()})
	}
	data, err := json.Marshal(rec)
	if err != nil {
		panic(errors.Wrap(err, "encoding node record"))
	}
	return data
}

// DecodeRecord rebuilds a node from its record, fetching children
// through lookup.
func DecodeRecord(data []byte, lookup func(ref.Ref) (*NodeState, error)) (*NodeState, error) {
	rec := record{}
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, errors.Wrap(err, "decoding node record")
	}

	propNames := make([]string, 0, len(rec.Props))
	props := make(map[string]Value, len(rec.Props))
	for _, pair := range rec.Props {
		v, err := decodeValue(pair[1])
		if err != nil {
			return nil, errors.Wrapf(err, "property %q", pair[0])
		}
		propNames = append(propNames, pair[0])
		props[pair[0]] = v
	}

	childNames := make([]string, 0, len(rec.Children))
	children := make(map[string]*NodeState, len(rec.Children))
	for _, pair := range rec.Children {
		r, ok := ref.MaybeParse(pair[1])
		if !ok {
			return nil, errors.Errorf("child %q has malformed ref %q", pair[0], pair[1])
		}
		child, err := lookup(r)
		if err != nil {
			return nil, errors.Wrapf(err, "child %q", pair[0])
		}
		childNames = append(childNames, pair[0])
		children[pair[0]] = child
	}

	return Make(childNames, children, propNames, props), nil
}
