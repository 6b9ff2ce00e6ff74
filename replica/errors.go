package replica

import (
	"errors"
	"fmt"

	"github.com/mtkira/weavetext/opid"
)

// ErrOutOfBounds is returned when a positional argument falls beyond a
// text's visible length.
var ErrOutOfBounds = errors.New("replica: position out of bounds")

// ErrNotUtf8Boundary is returned when insert/delete is asked to operate at
// a byte offset that doesn't fall on a UTF-8 rune boundary. The core
// detects and rejects this rather than silently splitting a multi-byte
// rune; callers (fuzz harnesses included) must pre-align.
var ErrNotUtf8Boundary = errors.New("replica: position is not a utf-8 boundary")

// ErrDetached names the error for a container whose ancestor chain has
// been broken (an ancestor was removed from the hierarchy). No function in
// this package returns it: Replica has no path query, and hierarchy's
// GetPath/GetAbsPath report a detached container with a false result.
var ErrDetached = errors.New("replica: container is detached from its root")

// MissingDependencyError reports that Import could not advance because a
// dependency named by one of its changes has not arrived yet. Blocked
// changes leave no trace in the log or in any container; changes from the
// same payload that were causally ready are still committed and applied.
type MissingDependencyError struct {
	Needed opid.OpIdSpan
}

func (e *MissingDependencyError) Error() string {
	return fmt.Sprintf("replica: missing dependency %s", e.Needed)
}

// CorruptError reports malformed wire data.
type CorruptError struct {
	Reason string
}

func (e *CorruptError) Error() string {
	return fmt.Sprintf("replica: corrupt wire data: %s", e.Reason)
}
