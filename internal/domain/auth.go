package domain

import "fmt"

type AuthStateKind int

const (
	AuthUninitialized AuthStateKind = iota
	AuthAwaitingPhoneNumber
	AuthAwaitingCode
	AuthAwaitingPassword
	AuthReady
	AuthLoggingOut
	AuthClosing
	AuthClosed
	AuthFailed
)

func (k AuthStateKind) String() string {
	switch k {
	case AuthUninitialized:
		return "uninitialized"
	case AuthAwaitingPhoneNumber:
		return "awaiting_phone_number"
	case AuthAwaitingCode:
		return "awaiting_code"
	case AuthAwaitingPassword:
		return "awaiting_password"
	case AuthReady:
		return "ready"
	case AuthLoggingOut:
		return "logging_out"
	case AuthClosing:
		return "closing"
	case AuthClosed:
		return "closed"
	case AuthFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// AuthState is the authorization state exposed to observers. Reason is only
// set for AuthFailed.
type AuthState struct {
	Kind   AuthStateKind
	Reason string
}

func StateOf(kind AuthStateKind) AuthState { return AuthState{Kind: kind} }

func FailedState(reason string) AuthState {
	return AuthState{Kind: AuthFailed, Reason: reason}
}

// Live reports whether the session can still progress towards Ready.
func (s AuthState) Live() bool {
	switch s.Kind {
	case AuthFailed, AuthLoggingOut, AuthClosing, AuthClosed:
		return false
	}
	return true
}

// Err returns an error wrapping ErrUnrecoverable for failed states and nil
// otherwise.
func (s AuthState) Err() error {
	if s.Kind != AuthFailed {
		return nil
	}
	return fmt.Errorf("%w: %s", ErrUnrecoverable, s.Reason)
}

func (s AuthState) String() string {
	if s.Kind == AuthFailed {
		return fmt.Sprintf("failed(%s)", s.Reason)
	}
	return s.Kind.String()
}
