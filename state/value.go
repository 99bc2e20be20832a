package state

import (
	"strconv"

	"github.com/pkg/errors"
)

// Value is an opaque scalar property value. Implementations are
// immutable and comparable via Equals.
type Value interface {
	Equals(other Value) bool
	String() string
}

type String string

func NewString(s string) String {
	return String(s)
}

func (s String) Equals(other Value) bool {
	o, ok := other.(String)
	return ok && s == o
}

func (s String) String() string {
	return string(s)
}

type Bool bool

func (b Bool) Equals(other Value) bool {
	o, ok := other.(Bool)
	return ok && b == o
}

func (b Bool) String() string {
	return strconv.FormatBool(bool(b))
}

type Number float64

func (n Number) Equals(other Value) bool {
	o, ok := other.(Number)
	return ok && n == o
}

func (n Number) String() string {
	return strconv.FormatFloat(float64(n), 'g', -1, 64)
}

// encodeValue renders v in the tagged textual form used by the record
// codec and by ref computation.
func encodeValue(v Value) string {
	switch v := v.(type) {
	case String:
		return "s:" + string(v)
	case Bool:
		return "b:" + v.String()
	case Number:
		return "n:" + v.String()
	}
	panic(errors.Errorf("unknown value type %T", v))
}

func decodeValue(s string) (Value, error) {
	if len(s) < 2 || s[1] != ':' {
		return nil, errors.Errorf("malformed value %q", s)
	}
	body := s[2:]
	switch s[0] {
	case 's':
		return String(body), nil
	case 'b':
		b, err := strconv.ParseBool(body)
		if err != nil {
			return nil, errors.Wrapf(err, "malformed bool value %q", s)
		}
		return Bool(b), nil
	case 'n':
		f, err := strconv.ParseFloat(body, 64)
		if err != nil {
			return nil, errors.Wrapf(err, "malformed number value %q", s)
		}
		return Number(f), nil
	}
	return nil, errors.Errorf("unknown value tag %q", s[:1])
}
