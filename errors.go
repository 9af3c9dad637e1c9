package filter

import (
	"errors"
	"fmt"
)

// Error kinds. Use `errors.Is` against these; concrete errors are `*Error`.
var (
	ErrInvalidCompareValue   = errors.New(`invalid compare value`)
	ErrUnsupportedOperator   = errors.New(`unsupported operator`)
	ErrInvalidFilterShape    = errors.New(`invalid filter shape`)
	ErrUnsupportedComparison = errors.New(`unsupported comparison`)
	ErrInvalidFilterTarget   = errors.New(`invalid filter target`)
)

/*
Error produced by compiling or running a filter. `.Kind` is one of the `Err*`
sentinels above, `.Key` is the operator or field key being processed when the
error occurred, if any.
*/
type Error struct {
	Kind error
	Key  string
	Msg  string
}

func (self *Error) Error() string {
	if self == nil {
		return ``
	}
	if self.Key != `` {
		return fmt.Sprintf(`[filter] %v at %q: %v`, self.Kind, self.Key, self.Msg)
	}
	return fmt.Sprintf(`[filter] %v: %v`, self.Kind, self.Msg)
}

func (self *Error) Unwrap() error { return self.Kind }

func errorf(kind error, key string, msg string, args ...any) *Error {
	return &Error{Kind: kind, Key: key, Msg: fmt.Sprintf(msg, args...)}
}
