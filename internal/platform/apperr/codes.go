package apperr

import "net/http"

// Code is a machine-readable error code.
type Code string

const (
	// CodeUnknown represents an unclassified error.
	CodeUnknown Code = "UNKNOWN"

	// CodeWrongPhase: a session operation was invoked while the room is
	// not in the phase that operation requires.
	CodeWrongPhase Code = "WRONG_PHASE"

	// CodeRulesViolation: the rules engine rejected the move descriptor.
	CodeRulesViolation Code = "RULES_VIOLATION"

	// CodeBadCredential: the access token could not be parsed.
	CodeBadCredential Code = "BAD_CREDENTIAL"

	// CodeUnknownCredential: the access token parsed but is not known to
	// the registry.
	CodeUnknownCredential Code = "UNKNOWN_CREDENTIAL"

	// CodeNotInRoom: the access token is valid but still waiting in a
	// matchmaking pool, so no room operations are possible yet.
	CodeNotInRoom Code = "NOT_IN_ROOM"

	// CodeCorruptSession: an internal invariant of a room was violated.
	// This is fatal for the room and indicates a bug, not a bad request.
	CodeCorruptSession Code = "CORRUPT_SESSION"
)

// HTTPStatus maps domain codes to HTTP status codes. The wire contract of
// the polling API returns most expected failures as a 200 with a tagged Err
// body; this mapping covers the cases that surface as plain HTTP errors.
func (c Code) HTTPStatus() int {
	switch c {
	case CodeWrongPhase, CodeRulesViolation:
		return http.StatusOK
	case CodeBadCredential, CodeUnknownCredential, CodeNotInRoom:
		return http.StatusOK
	case CodeCorruptSession:
		return http.StatusInternalServerError
	default:
		return http.StatusInternalServerError
	}
}

// Expected reports whether the code is an ordinary, user-facing outcome
// rather than an invariant violation.
func (c Code) Expected() bool {
	switch c {
	case CodeWrongPhase, CodeRulesViolation, CodeBadCredential, CodeUnknownCredential, CodeNotInRoom:
		return true
	default:
		return false
	}
}
