package auth

import (
	"time"

	"orderscout/page"
)

// Session is the handle to a signed-in tab. Only Engine.Run creates one.
type Session struct {
	driver page.Driver

	IdentifierKind   IdentifierKind
	AuthenticatedAt  time.Time
	SecondFactorUsed bool
	// Cycles is the number of Start..Verify cycles it took.
	Cycles int
}

// Driver returns the signed-in tab.
func (s *Session) Driver() page.Driver { return s.driver }
