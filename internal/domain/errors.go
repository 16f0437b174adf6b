package domain

import (
	"errors"
	"fmt"
)

// Kind classifies a failure so transports can map it to a stable code.
type Kind string

const (
	KindInvalidArgument    Kind = "INVALID_ARGUMENT"
	KindNotFound           Kind = "NOT_FOUND"
	KindRaceNotFound       Kind = "RACE_NOT_FOUND"
	KindEmptyRoster        Kind = "EMPTY_ROSTER"
	KindAlreadyJoined      Kind = "ALREADY_JOINED"
	KindUnknownParticipant Kind = "UNKNOWN_PARTICIPANT"
	KindAlreadyExists      Kind = "ALREADY_EXISTS"
	KindStorageFailure     Kind = "STORAGE_FAILURE"
	KindGenerationFailed   Kind = "GENERATION_FAILED"
	KindUnknown            Kind = "UNKNOWN"
)

// Error is a classified domain error.
type Error struct {
	Kind    Kind
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return e.Message + ": " + e.Cause.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// Is matches any *Error of the same kind, so errors.Is(err, ErrNotFound) works
// regardless of message.
func (e *Error) Is(target error) bool {
	var t *Error
	if errors.As(target, &t) {
		return e.Kind == t.Kind
	}
	return false
}

// Errorf builds a classified error with a formatted message.
func Errorf(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap classifies cause under kind.
func Wrap(kind Kind, message string, cause error) *Error {
	return &Error{Kind: kind, Message: message, Cause: cause}
}

// KindOf returns the kind of the first *Error in err's chain.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

var (
	// ErrInvalidArgument is returned for missing or malformed input.
	ErrInvalidArgument = &Error{Kind: KindInvalidArgument, Message: "invalid argument"}
	// ErrNotFound is returned when a race, leaderboard, progression or material is absent.
	ErrNotFound = &Error{Kind: KindNotFound, Message: "not found"}
	// ErrRaceNotFound is returned when a ledger is initialised before its race exists.
	ErrRaceNotFound = &Error{Kind: KindRaceNotFound, Message: "race not found"}
	// ErrEmptyRoster is returned when a ledger would be initialised with nobody in it.
	ErrEmptyRoster = &Error{Kind: KindEmptyRoster, Message: "no participants found in the race"}
	// ErrAlreadyJoined is returned when a participant joins a race twice.
	ErrAlreadyJoined = &Error{Kind: KindAlreadyJoined, Message: "participant already in the race"}
	// ErrUnknownParticipant is returned when a ledger has no row for the participant.
	ErrUnknownParticipant = &Error{Kind: KindUnknownParticipant, Message: "participant not found in ledger"}
	// ErrAlreadyExists is returned when a ledger is initialised twice.
	ErrAlreadyExists = &Error{Kind: KindAlreadyExists, Message: "already exists"}
	// ErrStorageFailure wraps durable store failures.
	ErrStorageFailure = &Error{Kind: KindStorageFailure, Message: "storage failure"}
)
