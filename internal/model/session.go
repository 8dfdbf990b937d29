package model

// SessionState is where a request's bearer credential sits in its lifecycle.
type SessionState int

const (
	// SessionAbsent: no credential was presented.
	SessionAbsent SessionState = iota
	// SessionPending: a credential was presented but not yet checked.
	SessionPending
	// SessionValid: signature and expiry checked; UserID is trustworthy.
	SessionValid
	// SessionExpired: the credential was genuine but its validity window passed.
	SessionExpired
	// SessionInvalid: malformed, tampered, or signed by someone else.
	SessionInvalid
)

func (s SessionState) String() string {
	switch s {
	case SessionAbsent:
		return "absent"
	case SessionPending:
		return "pending"
	case SessionValid:
		return "valid"
	case SessionExpired:
		return "expired"
	case SessionInvalid:
		return "invalid"
	}
	return "unknown"
}

// Session is the per-request view of the caller's identity. It is built by
// the auth middleware and passed explicitly to operations that need it.
type Session struct {
	State  SessionState
	UserID string
	Token  string
}

// Valid reports whether the session proves an identity.
func (s Session) Valid() bool {
	return s.State == SessionValid && s.UserID != ""
}
