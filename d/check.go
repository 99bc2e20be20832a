// Package d provides runtime assertions for conditions that indicate
// programmer error. Chk panics unrecoverably. Exp panics with an error
// value that Try can trap, for invariants that callers may reasonably
// want to turn into an error at a package boundary.
package d

import (
	"fmt"

	"github.com/stretchr/testify/assert"
)

var (
	Chk = assert.New(&panicker{})
	Exp = assert.New(&recoverablePanicker{})
)

type panicker struct{}

func (panicker) Errorf(format string, args ...interface{}) {
	panic(fmt.Sprintf(format, args...))
}

type recoverablePanicker struct{}

func (recoverablePanicker) Errorf(format string, args ...interface{}) {
	panic(trappedError{fmt.Sprintf(format, args...)})
}

type trappedError struct {
	msg string
}

func (e trappedError) Error() string {
	return e.msg
}

// Try runs f, converting a panic raised through Exp into an error.
// Panics from any other source propagate unchanged.
func Try(f func()) (err error) {
	defer func() {
		if r := recover(); r != nil {
			te, ok := r.(trappedError)
			if !ok {
				panic(r)
			}
			err = te
		}
	}()
	f()
	return
}
