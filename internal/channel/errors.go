package channel

import "errors"

var (
	// ErrBusy reports that another session currently holds the channel.
	// Routine outcome: the caller retries later or gives up.
	ErrBusy = errors.New("channel: busy")

	// ErrNotHolder reports a write/read/close with a token that does not
	// match the current session.
	ErrNotHolder = errors.New("channel: not session holder")

	// ErrTruncated reports that a write accepted fewer bytes than
	// requested because the payload exceeds Capacity. The accepted
	// prefix is committed; this is informational, not a failure.
	ErrTruncated = errors.New("channel: message truncated to capacity")

	// ErrShortBuffer reports that a read destination was smaller than
	// the stored message. The prefix is delivered and the slot drained.
	ErrShortBuffer = errors.New("channel: destination shorter than message")

	// ErrCopyFault reports that a cross-boundary copy failed. The slot
	// is left exactly as it was before the call.
	ErrCopyFault = errors.New("channel: copy fault")

	// ErrSealed reports an open attempted after shutdown began.
	ErrSealed = errors.New("channel: sealed")
)
