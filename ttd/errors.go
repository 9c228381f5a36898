package ttd

import (
	"errors"
	"fmt"
	"strings"

	"github.com/tliron/commonlog"
)

// ---------------------------------------------------------------------------
// Errors
// ---------------------------------------------------------------------------

// Format errors. Any of these aborts a parse or inflation pass.
var (
	ErrUnknownKind   = errors.New("ttd: unknown object kind")
	ErrUnknownTag    = errors.New("ttd: unknown value tag")
	ErrCorruptRecord = errors.New("ttd: corrupt record")
	ErrDuplicateID   = errors.New("ttd: duplicate id")
)

// Consistency errors raised during inflation.
var (
	ErrUnresolvedRef       = errors.New("ttd: unresolved object reference")
	ErrUnknownType         = errors.New("ttd: unknown type descriptor")
	ErrUnknownWellKnown    = errors.New("ttd: well-known object not found")
	ErrDependencyCycle     = errors.New("ttd: dependency cycle between shells")
	ErrNotInflatable       = errors.New("ttd: kind cannot be inflated")
	ErrUnknownBody         = errors.New("ttd: unknown function body")
	ErrPayloadMismatch     = errors.New("ttd: payload does not match kind")
	ErrNotPopulated        = errors.New("ttd: record was not populated")
	ErrContextReuseBlocked = errors.New("ttd: script context cannot be reused")
)

// ReuseBlockedError lists the well-known objects that prevented an in-place
// re-inflation. The caller must recreate the execution context instead.
type ReuseBlockedError struct {
	IDs []ObjectID
}

func (e *ReuseBlockedError) Error() string {
	ids := make([]string, len(e.IDs))
	for i, id := range e.IDs {
		ids[i] = id.String()
	}
	return fmt.Sprintf("%v: %s", ErrContextReuseBlocked, strings.Join(ids, ", "))
}

func (e *ReuseBlockedError) Unwrap() error { return ErrContextReuseBlocked }

// ---------------------------------------------------------------------------
// Logging
// ---------------------------------------------------------------------------

var (
	extractLog = commonlog.GetLogger("ttd.extract")
	inflateLog = commonlog.GetLogger("ttd.inflate")
	compareLog = commonlog.GetLogger("ttd.compare")
)
