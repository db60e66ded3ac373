package exception

import "errors"

var (
	ErrCorrelationConflict = errors.New("correlation: order already bound to another id")
	ErrCorrelationUnknown  = errors.New("correlation: id not found")
	ErrTicketUnresolved    = errors.New("correlation: remote ticket not resolved")

	ErrGroupUnknown   = errors.New("ledger: trade group not found")
	ErrGroupClosed    = errors.New("ledger: trade group already closed")
	ErrInvalidGroupOp = errors.New("ledger: invalid trade group operation")

	ErrDuplicateEvent = errors.New("dedup: event already processed")

	ErrAmbiguousMatch = errors.New("match: more than one equally valid candidate")
	ErrNoMatch        = errors.New("match: no candidate found")

	ErrSubmissionFailed = errors.New("mirror: closing order submission failed")
	ErrNoLivePosition   = errors.New("mirror: no live position to close")

	ErrNotifierQueueFull = errors.New("notify: outbound queue full")
)
