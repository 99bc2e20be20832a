package kernel

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/attic-labs/treekernel/ref"
	"github.com/pkg/errors"
)

// Revision identifies one committed, immutable state of a store. The
// ordinal gives revisions a total order per store; the root ref is the
// content address of the whole tree at that revision.
type Revision struct {
	ordinal uint64
	root    ref.Ref
}

func NewRevision(ordinal uint64, root ref.Ref) Revision {
	return Revision{ordinal, root}
}

func (r Revision) Ordinal() uint64 {
	return r.ordinal
}

func (r Revision) Root() ref.Ref {
	return r.root
}

func (r Revision) Equals(other Revision) bool {
	return r == other
}

func (r Revision) Less(other Revision) bool {
	return r.ordinal < other.ordinal
}

func (r Revision) String() string {
	return fmt.Sprintf("r%d-%s", r.ordinal, r.root)
}

// ParseRevision parses the textual form produced by String.
func ParseRevision(s string) (Revision, error) {
	if !strings.HasPrefix(s, "r") {
		return Revision{}, errors.Errorf("malformed revision %q", s)
	}
	i := strings.IndexByte(s, '-')
	if i < 0 {
		return Revision{}, errors.Errorf("malformed revision %q", s)
	}
	ordinal, err := strconv.ParseUint(s[1:i], 10, 64)
	if err != nil {
		return Revision{}, errors.Wrapf(err, "malformed revision %q", s)
	}
	root, ok := ref.MaybeParse(s[i+1:])
	if !ok {
		return Revision{}, errors.Errorf("malformed revision root in %q", s)
	}
	return Revision{ordinal, root}, nil
}
