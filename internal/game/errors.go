package game

import "errors"

// Kind groups engine errors by how a client should react to them.
type Kind string

const (
	KindNotFound           Kind = "NotFound"
	KindPreconditionFailed Kind = "PreconditionFailed"
	KindValidation         Kind = "Validation"
	KindResourceExhaustion Kind = "ResourceExhaustion"
	KindInternal           Kind = "Internal"
)

// Error is a typed engine failure. Values are compared by identity, so the
// exported sentinels below work with errors.Is.
type Error struct {
	Code    string
	Kind    Kind
	Message string
}

func (e *Error) Error() string {
	return e.Message
}

func newError(kind Kind, code, message string) *Error {
	return &Error{Code: code, Kind: kind, Message: message}
}

var (
	ErrRoomNotFound   = newError(KindNotFound, "RoomNotFound", "room not found")
	ErrPlayerNotFound = newError(KindNotFound, "PlayerNotFound", "player not found in room")

	ErrNotInAnsweringPhase = newError(KindPreconditionFailed, "NotInAnsweringPhase", "not in answering phase")
	ErrNotInVotingPhase    = newError(KindPreconditionFailed, "NotInVotingPhase", "not in voting phase")
	ErrNotInResultsPhase   = newError(KindPreconditionFailed, "NotInResultsPhase", "not in results phase")
	ErrAlreadyStarted      = newError(KindPreconditionFailed, "AlreadyStarted", "game has already started")
	ErrAlreadyAnswered     = newError(KindPreconditionFailed, "AlreadyAnswered", "already answered this round")
	ErrAlreadyVoted        = newError(KindPreconditionFailed, "AlreadyVoted", "already voted this round")
	ErrNameAlreadyTaken    = newError(KindPreconditionFailed, "NameAlreadyTaken", "a player with this name already exists in the room")
	ErrInsufficientPlayers = newError(KindPreconditionFailed, "InsufficientPlayers", "need at least 3 connected players to start")

	ErrNotHost           = newError(KindValidation, "NotHost", "only the host can start the game")
	ErrCannotVoteForSelf = newError(KindValidation, "CannotVoteForSelf", "cannot vote for your own answer")
	ErrInvalidVoteTarget = newError(KindValidation, "InvalidVoteTarget", "invalid vote target")
	ErrInvalidName       = newError(KindValidation, "InvalidName", "name must be between 2 and 20 characters")
	ErrInvalidRoomCode   = newError(KindValidation, "InvalidRoomCode", "room code must be 6 characters")
	ErrEmptyAnswer       = newError(KindValidation, "EmptyAnswer", "answer cannot be empty")
	ErrAnswerTooLong     = newError(KindValidation, "AnswerTooLong", "answer must be at most 200 characters")
	ErrIdentityMismatch  = newError(KindValidation, "IdentityMismatch", "action does not match the session")
	ErrBadMessage        = newError(KindValidation, "BadMessage", "malformed message")

	ErrCodeGenerationExhausted = newError(KindResourceExhaustion, "CodeGenerationExhausted", "failed to generate unique room code")
	ErrQuestionsExhausted      = newError(KindResourceExhaustion, "QuestionsExhausted", "no questions available")

	ErrInternal = newError(KindInternal, "InternalError", "internal server error")
)

// AsError returns the engine error carried by err, or ErrInternal for
// infrastructure failures.
func AsError(err error) *Error {
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return ErrInternal
}
