package auth

import "fmt"

// State is a node of the login state machine.
type State int

const (
	Start State = iota
	UsernameEntry
	PasswordEntry
	SecondFactorCheck
	SecondFactorEntry
	Verify
	Authenticated
	Failed
)

var stateNames = [...]string{
	Start:             "Start",
	UsernameEntry:     "UsernameEntry",
	PasswordEntry:     "PasswordEntry",
	SecondFactorCheck: "SecondFactorCheck",
	SecondFactorEntry: "SecondFactorEntry",
	Verify:            "Verify",
	Authenticated:     "Authenticated",
	Failed:            "Failed",
}

func (s State) String() string {
	if s >= 0 && int(s) < len(stateNames) {
		return stateNames[s]
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// Terminal reports whether the machine stops in s.
func (s State) Terminal() bool {
	return s == Authenticated || s == Failed
}

// Outcome is the result of running one stage.
type Outcome int

const (
	// Success moves to the next state.
	Success Outcome = iota
	// Retry restarts the whole cycle from Start.
	Retry
	// Exhausted means the stage used up its attempts.
	Exhausted
)

func (o Outcome) String() string {
	switch o {
	case Success:
		return "success"
	case Retry:
		return "retry"
	case Exhausted:
		return "exhausted"
	default:
		return fmt.Sprintf("Outcome(%d)", int(o))
	}
}

// PasswordResult classifies what the site did with a submitted secret.
type PasswordResult int

const (
	PasswordAccepted PasswordResult = iota
	PasswordPendingSecondFactor
	PasswordRejected
)

func (r PasswordResult) String() string {
	switch r {
	case PasswordAccepted:
		return "accepted"
	case PasswordPendingSecondFactor:
		return "pending-second-factor"
	case PasswordRejected:
		return "rejected"
	default:
		return fmt.Sprintf("PasswordResult(%d)", int(r))
	}
}

// Signal names the evidence that a one-time code is being asked for.
type Signal string

const (
	SignalNone      Signal = ""
	SignalURL       Signal = "url"
	SignalTitle     Signal = "title"
	SignalCodeField Signal = "code-field"
	SignalBodyText  Signal = "body-text"
	// SignalAlert is set when an alert mentions codes or rate limits.
	SignalAlert Signal = "alert"
)
