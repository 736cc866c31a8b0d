package ampoule

import (
	"fmt"
	"sync/atomic"
)

// tokenCounter is process-wide and never reset. Token ids stay valid for the
// whole process lifetime, so there is no reclamation to worry about.
var tokenCounter atomic.Uint64

// Token is an opaque binding key. Identity is the *Token value itself: two
// calls to NewToken always mint distinct tokens, even with the same
// description. The description is diagnostic-only.
type Token struct {
	id          uint64
	description string
}

// NewToken mints a fresh token. Pass an empty description if you don't care
// about diagnostics; errors will then render the token by its number.
func NewToken(description string) *Token {
	return &Token{
		id:          tokenCounter.Add(1),
		description: description,
	}
}

func (t *Token) Description() string {
	return t.description
}

func (t *Token) String() string {
	if t.description != "" {
		return fmt.Sprintf("Token<%s>", t.description)
	}
	return fmt.Sprintf("Token<#%d>", t.id)
}
