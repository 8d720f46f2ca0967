package chat

import (
	"errors"

	"github.com/Tyrowin/roomchat/internal/users"
)

// Errors returned by the event handlers. Their text is shown to the client
// as-is in the acknowledgment.
var (
	ErrNotJoined       = errors.New("You must join a room first")
	ErrProfanity       = errors.New("Profanity is not allowed!")
	ErrEmptyMessage    = errors.New("Message cannot be empty")
	ErrInvalidLocation = errors.New("Location requires numeric lat and lng")
	ErrInvalidPayload  = errors.New("Malformed event")
	ErrUnknownEvent    = errors.New("Unknown event")
	ErrRateLimited     = errors.New("Too many events, slow down")
)

// Kind classifies an error for clients that want to branch on it.
type Kind string

// Error kinds reported in acknowledgments.
const (
	KindValidation  Kind = "validation"
	KindConflict    Kind = "conflict"
	KindProfanity   Kind = "profanity"
	KindNotJoined   Kind = "not_joined"
	KindRateLimited Kind = "rate_limited"
	KindInternal    Kind = "internal"
)

// KindOf returns the Kind of err, or an empty Kind for a nil error.
func KindOf(err error) Kind {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, users.ErrMissingFields),
		errors.Is(err, ErrEmptyMessage),
		errors.Is(err, ErrInvalidLocation),
		errors.Is(err, ErrInvalidPayload),
		errors.Is(err, ErrUnknownEvent):
		return KindValidation
	case errors.Is(err, users.ErrUsernameInUse),
		errors.Is(err, users.ErrAlreadyJoined):
		return KindConflict
	case errors.Is(err, ErrProfanity):
		return KindProfanity
	case errors.Is(err, ErrNotJoined):
		return KindNotJoined
	case errors.Is(err, ErrRateLimited):
		return KindRateLimited
	default:
		return KindInternal
	}
}
