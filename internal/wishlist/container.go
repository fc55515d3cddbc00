package wishlist

import (
	"context"
	"sync"

	"github.com/google/uuid"

	pkgerrors "github.com/angelmondragon/packfinderz-storefront/pkg/errors"
	"github.com/angelmondragon/packfinderz-storefront/pkg/logger"
	"github.com/angelmondragon/packfinderz-storefront/pkg/metrics"
)

const containerName = "wishlist"

// ServerAPI is the slice of the storefront API the wishlist depends on.
type ServerAPI interface {
	WishlistAdd(ctx context.Context, productID uuid.UUID) error
	WishlistRemove(ctx context.Context, productID uuid.UUID) error
}

// GenerationSource reports the current session generation, used to skip
// rollbacks that would restore state from an ended session.
type GenerationSource interface {
	Generation() uint64
}

type ContainerParams struct {
	API     ServerAPI
	Session GenerationSource
	Logger  *logger.Logger
	Metrics *metrics.SyncMetrics
}

// Container is a synchronized membership set of saved products.
type Container struct {
	api     ServerAPI
	session GenerationSource
	logg    *logger.Logger
	metrics *metrics.SyncMetrics

	mu      sync.Mutex
	members map[uuid.UUID]struct{}
	order   []uuid.UUID
}

func NewContainer(params ContainerParams) (*Container, error) {
	if params.API == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "wishlist: API is required")
	}
	if params.Session == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "wishlist: Session is required")
	}
	return &Container{
		api:     params.API,
		session: params.Session,
		logg:    params.Logger,
		metrics: params.Metrics,
		members: make(map[uuid.UUID]struct{}),
	}, nil
}

// Add saves the product. Adding a product that is already saved is a
// no-op and does not contact the server.
func (c *Container) Add(ctx context.Context, productID uuid.UUID) error {
	c.mu.Lock()
	return c.addLocked(ctx, productID)
}

// addLocked applies the optimistic add. c.mu must be held; it is released
// before the server call.
func (c *Container) addLocked(ctx context.Context, productID uuid.UUID) error {
	if _, ok := c.members[productID]; ok {
		c.mu.Unlock()
		return nil
	}
	c.members[productID] = struct{}{}
	c.order = append(c.order, productID)
	generation := c.session.Generation()
	c.mu.Unlock()

	err := c.api.WishlistAdd(ctx, productID)
	if err == nil {
		c.metrics.IncMutation(containerName, "add", metrics.OutcomeSuccess)
		return nil
	}

	c.metrics.IncMutation(containerName, "add", metrics.OutcomeFailure)
	c.mu.Lock()
	if c.session.Generation() == generation {
		delete(c.members, productID)
		c.removeFromOrderLocked(productID)
	}
	c.mu.Unlock()

	if c.logg != nil {
		c.logg.Warn(ctx, "wishlist add rejected, local state rolled back")
	}
	return err
}

// Remove unsaves the product. Removing an absent product is a no-op.
func (c *Container) Remove(ctx context.Context, productID uuid.UUID) error {
	c.mu.Lock()
	return c.removeLocked(ctx, productID)
}

// removeLocked applies the optimistic remove. c.mu must be held; it is
// released before the server call.
func (c *Container) removeLocked(ctx context.Context, productID uuid.UUID) error {
	if _, ok := c.members[productID]; !ok {
		c.mu.Unlock()
		return nil
	}
	orderIdx := c.indexLocked(productID)
	delete(c.members, productID)
	c.removeFromOrderLocked(productID)
	generation := c.session.Generation()
	c.mu.Unlock()

	err := c.api.WishlistRemove(ctx, productID)
	if err == nil {
		c.metrics.IncMutation(containerName, "remove", metrics.OutcomeSuccess)
		return nil
	}

	c.metrics.IncMutation(containerName, "remove", metrics.OutcomeFailure)
	c.mu.Lock()
	if c.session.Generation() == generation {
		if _, ok := c.members[productID]; !ok {
			c.members[productID] = struct{}{}
			c.insertOrderLocked(productID, orderIdx)
		}
	}
	c.mu.Unlock()

	if c.logg != nil {
		c.logg.Warn(ctx, "wishlist remove rejected, local state rolled back")
	}
	return err
}

// Toggle adds the product when absent and removes it when present, so two
// consecutive toggles always restore the starting membership. The branch
// resolves under the same lock that applies the mutation, so two racing
// toggles cannot act on one observation.
func (c *Container) Toggle(ctx context.Context, productID uuid.UUID) error {
	c.mu.Lock()
	if _, ok := c.members[productID]; ok {
		return c.removeLocked(ctx, productID)
	}
	return c.addLocked(ctx, productID)
}

func (c *Container) Contains(productID uuid.UUID) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.members[productID]
	return ok
}

// Items returns the saved product IDs in insertion order.
func (c *Container) Items() []uuid.UUID {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]uuid.UUID, len(c.order))
	copy(out, c.order)
	return out
}

func (c *Container) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.members)
}

// Reset clears the local wishlist without contacting the server.
func (c *Container) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.members = make(map[uuid.UUID]struct{})
	c.order = nil
}

func (c *Container) indexLocked(productID uuid.UUID) int {
	for i, id := range c.order {
		if id == productID {
			return i
		}
	}
	return -1
}

func (c *Container) removeFromOrderLocked(productID uuid.UUID) {
	for i, id := range c.order {
		if id == productID {
			c.order = append(c.order[:i], c.order[i+1:]...)
			return
		}
	}
}

func (c *Container) insertOrderLocked(productID uuid.UUID, idx int) {
	if idx < 0 || idx > len(c.order) {
		idx = len(c.order)
	}
	c.order = append(c.order, uuid.Nil)
	copy(c.order[idx+1:], c.order[idx:])
	c.order[idx] = productID
}
