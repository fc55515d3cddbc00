package invalidator

import (
	"sync"

	"github.com/angelmondragon/packfinderz-storefront/internal/session"
	"github.com/angelmondragon/packfinderz-storefront/pkg/logger"
	"github.com/angelmondragon/packfinderz-storefront/pkg/metrics"
)

// Resettable is any store that can drop its user-scoped state. Containers
// register themselves explicitly; nothing is discovered.
type Resettable interface {
	Reset()
}

// TransitionSource is the slice of the session manager the invalidator
// subscribes to.
type TransitionSource interface {
	Subscribe(fn func(session.Transition))
}

// Invalidator flushes every registered store when the session identity
// goes away: logout, forced logout after a failed refresh, or a rejected
// verification. The flush runs synchronously inside the transition
// publication, so by the time Logout returns every store is empty.
type Invalidator struct {
	logg    *logger.Logger
	metrics *metrics.SyncMetrics

	mu      sync.Mutex
	targets []Resettable
}

func New(logg *logger.Logger, m *metrics.SyncMetrics) *Invalidator {
	return &Invalidator{logg: logg, metrics: m}
}

// Attach registers stores to be flushed. Safe to call before or after
// Register.
func (v *Invalidator) Attach(targets ...Resettable) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.targets = append(v.targets, targets...)
}

// Register subscribes the invalidator to session transitions.
func (v *Invalidator) Register(source TransitionSource) {
	source.Subscribe(v.onTransition)
}

func (v *Invalidator) onTransition(tr session.Transition) {
	if tr.Identity != nil {
		return
	}
	// only terminal states end a session; intermediate identity-less
	// transitions, like the start of a login, must not count as flushes
	if tr.To != session.StateLoggedOut && tr.To != session.StateAnonymous {
		return
	}
	v.Flush()
}

// Flush resets every registered store.
func (v *Invalidator) Flush() {
	v.mu.Lock()
	targets := make([]Resettable, len(v.targets))
	copy(targets, v.targets)
	v.mu.Unlock()

	for _, target := range targets {
		target.Reset()
	}
	v.metrics.IncFlush()
}
