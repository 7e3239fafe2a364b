package conversation

import "errors"

var (
	// ErrTurnInProgress means a turn is already moving through the
	// pipeline and a new capture cannot start yet.
	ErrTurnInProgress = errors.New("a turn is already in progress")

	// ErrNotListening means StopTurn was called with no capture open.
	ErrNotListening = errors.New("no capture in progress")

	// ErrNotFailed means Acknowledge was called outside the failed state.
	ErrNotFailed = errors.New("conversation is not in a failed state")
)
