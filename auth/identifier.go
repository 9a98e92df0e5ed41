package auth

import "strings"

// IdentifierKind is what an account identifier looks like.
type IdentifierKind int

const (
	Unknown IdentifierKind = iota
	Email
	Phone
)

func (k IdentifierKind) String() string {
	switch k {
	case Email:
		return "email"
	case Phone:
		return "phone"
	default:
		return "unknown"
	}
}

// Classify accepts an address with a non-empty local part and a dotted
// domain, or exactly ten ASCII digits. Everything else is Unknown.
func Classify(id string) IdentifierKind {
	if isPhone(id) {
		return Phone
	}
	if isEmail(id) {
		return Email
	}
	return Unknown
}

func isEmail(id string) bool {
	if strings.ContainsAny(id, " \t\r\n") {
		return false
	}
	at := strings.LastIndex(id, "@")
	if at <= 0 {
		return false
	}
	domain := id[at+1:]
	dot := strings.LastIndex(domain, ".")
	return dot > 0 && dot < len(domain)-1
}

func isPhone(id string) bool {
	if len(id) != 10 {
		return false
	}
	for i := 0; i < len(id); i++ {
		if id[i] < '0' || id[i] > '9' {
			return false
		}
	}
	return true
}

// mask hides most of an identifier for logging.
func mask(id string) string {
	switch Classify(id) {
	case Email:
		at := strings.LastIndex(id, "@")
		return id[:1] + "***" + id[at:]
	case Phone:
		return "******" + id[6:]
	default:
		return "***"
	}
}
