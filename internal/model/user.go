package model

import (
	"strings"
	"unicode/utf8"
)

type UserID string

// Identity is the display identity of the current visitor.
type Identity struct {
	ID        UserID
	FirstName string
	LastName  string
	AvatarURL string
	SignedIn  bool
}

// Anonymous is the identity of a signed-out visitor.
var Anonymous = Identity{}

func (i Identity) FullName() string {
	return strings.TrimSpace(i.FirstName + " " + i.LastName)
}

// Initials is the avatar fallback: first rune of each name part.
func (i Identity) Initials() string {
	return firstRune(i.FirstName) + firstRune(i.LastName)
}

// Handle renders as @FirstLast-abcd, using the last four characters of the id.
func (i Identity) Handle() string {
	id := string(i.ID)
	if utf8.RuneCountInString(id) > 4 {
		r := []rune(id)
		id = string(r[len(r)-4:])
	}
	return "@" + i.FirstName + i.LastName + "-" + id
}

// Avatar returns the avatar to show, falling back when there is no user id.
func (i Identity) Avatar(fallback string) string {
	if i.ID == "" {
		return fallback
	}
	return i.AvatarURL
}

func firstRune(s string) string {
	r, size := utf8.DecodeRuneInString(s)
	if size == 0 || r == utf8.RuneError {
		return ""
	}
	return string(r)
}
