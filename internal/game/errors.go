package game

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidMove matches every *InvalidMoveError via errors.Is.
	ErrInvalidMove = errors.New("invalid move")
	// ErrPrecondition matches every *PreconditionError via errors.Is.
	ErrPrecondition = errors.New("search precondition violated")
)

// InvalidMoveError reports a column that is out of range, a drop into a full
// column, an undo on an empty column or a drop of a non-player mark.
// It is always a caller bug and is never retried inside the engine.
type InvalidMoveError struct {
	Column int
	Reason string
}

func (e *InvalidMoveError) Error() string {
	return fmt.Sprintf("invalid move in column %d: %s", e.Column, e.Reason)
}

func (e *InvalidMoveError) Is(target error) bool {
	return target == ErrInvalidMove
}

// PreconditionError is returned when a search is started on a board that is
// already decided, has no legal move, or with a bad mark or depth.
type PreconditionError struct {
	Reason string
}

func (e *PreconditionError) Error() string {
	return "search precondition: " + e.Reason
}

func (e *PreconditionError) Is(target error) bool {
	return target == ErrPrecondition
}

// Session errors
var (
	ErrGameNotInProgress = &GameError{"game is not in progress"}
	ErrNotYourTurn       = &GameError{"not your turn"}
	ErrGameNotFound      = &GameError{"game not found"}
	ErrPlayerNotFound    = &GameError{"player not found"}
)

type GameError struct {
	msg string
}

func (e *GameError) Error() string {
	return e.msg
}
