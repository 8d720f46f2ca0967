package chat

import goaway "github.com/TwiN/go-away"

// ProfanityFilter reports whether text must be rejected.
type ProfanityFilter interface {
	IsProfane(text string) bool
}

// FilterFunc adapts a plain function to ProfanityFilter.
type FilterFunc func(text string) bool

// IsProfane calls f(text).
func (f FilterFunc) IsProfane(text string) bool {
	return f(text)
}

// NewProfanityFilter returns the default dictionary-based filter. The detector
// is stateless after construction and shared by every connection.
func NewProfanityFilter() ProfanityFilter {
	return goaway.NewProfanityDetector()
}
