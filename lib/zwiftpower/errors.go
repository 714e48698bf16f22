package zwiftpower

import "fmt"

type AuthFailureKind int

const (
	// the expected identity provider login form could not be located,
	// which means the upstream flow changed shape, not that the
	// credentials were wrong
	AuthNoLoginForm AuthFailureKind = iota
	// the upstream explicitly rejected the credentials, or silently
	// refused to establish a session
	AuthInvalidCredentials
	// the upstream could not be reached at all
	AuthTransport
)

func (k AuthFailureKind) String() string {
	switch k {
	case AuthNoLoginForm:
		return "no login form"
	case AuthInvalidCredentials:
		return "invalid credentials"
	case AuthTransport:
		return "transport"
	}
	return "unknown"
}

// AuthError describes a failed login. Message carries only upstream
// human-readable text, never the submitted credentials.
type AuthError struct {
	Kind    AuthFailureKind
	Message string
	Cause   error
}

func (e *AuthError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("login failed (%s): %s", e.Kind, e.Message)
	}
	if e.Cause != nil {
		return fmt.Sprintf("login failed (%s): %s", e.Kind, e.Cause)
	}
	return fmt.Sprintf("login failed (%s)", e.Kind)
}

func (e *AuthError) Unwrap() error {
	return e.Cause
}

type FetchFailureKind int

const (
	// the upstream kept rate limiting us after all retries
	FetchRateLimited FetchFailureKind = iota
	// the upstream could not be reached, or the call timed out
	FetchTransport
	// the upstream responded with something of an unexpected shape
	FetchMalformedUpstream
)

func (k FetchFailureKind) String() string {
	switch k {
	case FetchRateLimited:
		return "rate limited"
	case FetchTransport:
		return "transport"
	case FetchMalformedUpstream:
		return "malformed upstream"
	}
	return "unknown"
}

type FetchError struct {
	Kind   FetchFailureKind
	URL    string
	Status int
	Cause  error
}

func (e *FetchError) Error() string {
	msg := fmt.Sprintf("fetch failed (%s): %s", e.Kind, e.URL)
	if e.Status != 0 {
		msg = fmt.Sprintf("%s: status %d", msg, e.Status)
	}
	if e.Cause != nil {
		msg = fmt.Sprintf("%s: %s", msg, e.Cause)
	}
	return msg
}

func (e *FetchError) Unwrap() error {
	return e.Cause
}
