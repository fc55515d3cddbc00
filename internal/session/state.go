package session

import "github.com/angelmondragon/packfinderz-storefront/pkg/types"

// Identity aliases the server-issued identity for subscriber convenience.
type Identity = types.Identity

// State is the auth lifecycle position of the client session.
type State string

const (
	StateAnonymous      State = "anonymous"
	StateAuthenticating State = "authenticating"
	StateAuthenticated  State = "authenticated"
	StateRefreshing     State = "refreshing_token"
	// StateLoggedOut is a transient state held for a short grace window after
	// an explicit logout, suppressing automatic re-authentication so a
	// pending authenticated request cannot resurrect the session.
	StateLoggedOut State = "logged_out"
)

// Transition describes one state change, published synchronously to
// subscribers before the mutating call returns.
type Transition struct {
	From       State
	To         State
	Generation uint64
	// Identity is the identity after the transition; nil means no identity,
	// which is the trigger for cross-store invalidation.
	Identity *Identity
}
