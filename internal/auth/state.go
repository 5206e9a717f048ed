package auth

// State is the lifecycle of the session held by a Context.
//
//	Uninitialized -> Hydrating -> Authenticated | Unauthenticated
//
// Login and MFA verification move to Authenticated, Logout to Unauthenticated.
type State int

const (
	StateUninitialized State = iota
	StateHydrating
	StateAuthenticated
	StateUnauthenticated
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateHydrating:
		return "hydrating"
	case StateAuthenticated:
		return "authenticated"
	case StateUnauthenticated:
		return "unauthenticated"
	default:
		return "unknown"
	}
}

// Loading reports whether the session is not yet known.
func (s State) Loading() bool {
	return s == StateUninitialized || s == StateHydrating
}

// LoginOutcome distinguishes a completed login from a pending one-time code
// challenge. Neither is an error.
type LoginOutcome int

const (
	LoginSucceeded LoginOutcome = iota + 1
	LoginMFARequired
)

func (o LoginOutcome) String() string {
	switch o {
	case LoginSucceeded:
		return "succeeded"
	case LoginMFARequired:
		return "mfa_required"
	default:
		return "unknown"
	}
}
