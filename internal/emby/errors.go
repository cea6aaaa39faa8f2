package emby

import (
	"errors"
	"fmt"

	"github.com/spotlightapp/spotlight-server/internal/httpx"
)

// Sentinel errors for host API operations.
var (
	ErrNotFound     = httpx.ErrNotFound
	ErrUnauthorized = httpx.ErrForbidden
	ErrNoUser       = errors.New("emby: no enabled administrator found")
)

// Error wraps an underlying error with operation context.
type Error struct {
	Op  string // "getItems", "getItem", "lookup", "children", "users", "systemInfo"
	ID  string // item, user or provider id, if applicable
	Err error
}

func (e *Error) Error() string {
	if e.ID != "" {
		return fmt.Sprintf("emby %s [%s]: %v", e.Op, e.ID, e.Err)
	}
	return fmt.Sprintf("emby %s: %v", e.Op, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func wrapError(op, id string, err error) error {
	return &Error{Op: op, ID: id, Err: err}
}
