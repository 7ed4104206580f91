package reporting

import (
	"errors"
	"fmt"
)

var (
	ErrProjectNotFound = errors.New("project not found")
	ErrRunNotFound     = errors.New("run not found")
	ErrResultNotFound  = errors.New("result not found")
	ErrFilterNotFound  = errors.New("filter not found")
)

// NotFoundError reports a missing entity by id. It unwraps to the sentinel of the
// entity kind so callers can use errors.Is.
type NotFoundError struct {
	Entity string
	ID     int64
	err    error
}

func (e *NotFoundError) Error() string { return fmt.Sprintf("%s '%d' not found", e.Entity, e.ID) }
func (e *NotFoundError) Unwrap() error { return e.err }

func ProjectNotFound(id int64) error {
	return &NotFoundError{Entity: "project", ID: id, err: ErrProjectNotFound}
}
func RunNotFound(id int64) error    { return &NotFoundError{Entity: "run", ID: id, err: ErrRunNotFound} }
func ResultNotFound(id int64) error { return &NotFoundError{Entity: "result", ID: id, err: ErrResultNotFound} }
func FilterNotFound(id int64) error { return &NotFoundError{Entity: "filter", ID: id, err: ErrFilterNotFound} }

// IsNotFound reports whether err is a NotFoundError of any entity kind.
func IsNotFound(err error) bool {
	var nf *NotFoundError
	return errors.As(err, &nf)
}
