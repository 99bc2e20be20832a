// Package ref implements content addresses for node records. A Ref is
// the sha1 digest of a node's serialized content; two nodes with equal
// refs are structurally equal, which makes refs double as a cheap
// structural-equality fast path and as the deduplication key in
// persistent stores.
package ref

import (
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"hash"
	"regexp"

	"github.com/attic-labs/treekernel/d"
)

var pattern = regexp.MustCompile("^sha1-([0-9a-f]{40})$")

type Sha1Digest [sha1.Size]byte

type Ref struct {
	digest Sha1Digest
}

func New(digest Sha1Digest) Ref {
	return Ref{digest}
}

// Digest returns a copy of the digest backing r.
func (r Ref) Digest() Sha1Digest {
	return r.digest
}

func (r Ref) IsEmpty() bool {
	return r.digest == Sha1Digest{}
}

func (r Ref) String() string {
	return fmt.Sprintf("sha1-%s", hex.EncodeToString(r.digest[:]))
}

// NewHash creates a new instance of the hash used for refs.
func NewHash() hash.Hash {
	return sha1.New()
}

func FromData(data []byte) Ref {
	h := NewHash()
	_, err := h.Write(data)
	d.Chk.NoError(err)
	return FromHash(h)
}

func FromHash(h hash.Hash) Ref {
	d.Chk.Equal(sha1.Size, h.Size())
	digest := Sha1Digest{}
	h.Sum(digest[:0])
	return New(digest)
}

// MaybeParse parses the textual form produced by String, reporting
// whether s was well formed.
func MaybeParse(s string) (Ref, bool) {
	match := pattern.FindStringSubmatch(s)
	if match == nil {
		return Ref{}, false
	}
	r := Ref{}
	n, err := hex.Decode(r.digest[:], []byte(match[1]))
	d.Chk.NoError(err) // the pattern above validated the input
	d.Chk.Equal(sha1.Size, n)
	return r, true
}

// Parse is MaybeParse for input that is known to be well formed.
func Parse(s string) Ref {
	r, ok := MaybeParse(s)
	if !ok {
		d.Exp.Fail(fmt.Sprintf("could not parse ref: %s", s))
	}
	return r
}

// Less compares two refs bytewise. This can be called a lot, so avoid
// reflection-based comparisons here.
func Less(r1, r2 Ref) bool {
	d1, d2 := r1.digest, r2.digest
	for k := 0; k < len(d1); k++ {
		if d1[k] != d2[k] {
			return d1[k] < d2[k]
		}
	}
	return false
}
