package cart

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/packfinderz-storefront/internal/catalog"
	pkgerrors "github.com/angelmondragon/packfinderz-storefront/pkg/errors"
	"github.com/angelmondragon/packfinderz-storefront/pkg/logger"
	"github.com/angelmondragon/packfinderz-storefront/pkg/metrics"
)

const containerName = "cart"

// ServerAPI is the slice of the storefront API the cart depends on.
type ServerAPI interface {
	CartAdd(ctx context.Context, productID uuid.UUID, quantity int) error
	CartSetQuantity(ctx context.Context, productID uuid.UUID, quantity int) error
	CartRemove(ctx context.Context, productID uuid.UUID) error
}

// GenerationSource reports the current session generation. Rollbacks are
// skipped when the generation moved while a mutation was in flight, since
// the local state they would restore belongs to a session that no longer
// exists.
type GenerationSource interface {
	Generation() uint64
}

type ContainerParams struct {
	API     ServerAPI
	Session GenerationSource
	Logger  *logger.Logger
	Metrics *metrics.SyncMetrics
}

// Container holds the cart lines and keeps them synchronized with the
// server. Mutations apply locally first and roll back if the server call
// fails.
type Container struct {
	api     ServerAPI
	session GenerationSource
	logg    *logger.Logger
	metrics *metrics.SyncMetrics

	mu    sync.Mutex
	items map[uuid.UUID]catalog.CartItem
	order []uuid.UUID
}

func NewContainer(params ContainerParams) (*Container, error) {
	if params.API == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "cart: API is required")
	}
	if params.Session == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "cart: Session is required")
	}
	return &Container{
		api:     params.API,
		session: params.Session,
		logg:    params.Logger,
		metrics: params.Metrics,
		items:   make(map[uuid.UUID]catalog.CartItem),
	}, nil
}

// snapshot captures the state of a single line so a failed mutation can be
// undone without touching lines modified concurrently.
type snapshot struct {
	existed  bool
	item     catalog.CartItem
	orderIdx int
}

func (c *Container) snapshotLocked(productID uuid.UUID) snapshot {
	item, ok := c.items[productID]
	snap := snapshot{existed: ok, item: item, orderIdx: -1}
	if ok {
		for i, id := range c.order {
			if id == productID {
				snap.orderIdx = i
				break
			}
		}
	}
	return snap
}

func (c *Container) restoreLocked(productID uuid.UUID, snap snapshot) {
	_, present := c.items[productID]
	if !snap.existed {
		if present {
			delete(c.items, productID)
			c.removeFromOrderLocked(productID)
		}
		return
	}
	c.items[productID] = snap.item
	if !present {
		idx := snap.orderIdx
		if idx < 0 || idx > len(c.order) {
			idx = len(c.order)
		}
		c.order = append(c.order, uuid.Nil)
		copy(c.order[idx+1:], c.order[idx:])
		c.order[idx] = productID
	}
}

func (c *Container) removeFromOrderLocked(productID uuid.UUID) {
	for i, id := range c.order {
		if id == productID {
			c.order = append(c.order[:i], c.order[i+1:]...)
			return
		}
	}
}

// Add puts the product in the cart, or increments the quantity of the
// existing line.
func (c *Container) Add(ctx context.Context, product catalog.Product, quantity int) error {
	if quantity < 1 {
		return pkgerrors.New(pkgerrors.CodeValidation, "quantity must be at least 1")
	}

	c.mu.Lock()
	return c.addLocked(ctx, product, quantity)
}

// addLocked applies the optimistic add. c.mu must be held; it is released
// before the server call.
func (c *Container) addLocked(ctx context.Context, product catalog.Product, quantity int) error {
	snap := c.snapshotLocked(product.ID)
	item := snap.item
	if snap.existed {
		item.Quantity += quantity
	} else {
		item = catalog.CartItem{Product: product, Quantity: quantity}
		c.order = append(c.order, product.ID)
	}
	c.items[product.ID] = item
	generation := c.session.Generation()
	c.mu.Unlock()

	return c.confirm(ctx, "add", product.ID, snap, generation, func() error {
		return c.api.CartAdd(ctx, product.ID, quantity)
	})
}

// SetQuantity changes the quantity of an existing line. A quantity of zero
// or less removes the line.
func (c *Container) SetQuantity(ctx context.Context, productID uuid.UUID, quantity int) error {
	if quantity <= 0 {
		return c.Remove(ctx, productID)
	}

	c.mu.Lock()
	snap := c.snapshotLocked(productID)
	if !snap.existed {
		c.mu.Unlock()
		return pkgerrors.New(pkgerrors.CodeValidation, "product is not in the cart")
	}
	item := snap.item
	item.Quantity = quantity
	c.items[productID] = item
	generation := c.session.Generation()
	c.mu.Unlock()

	return c.confirm(ctx, "set_quantity", productID, snap, generation, func() error {
		return c.api.CartSetQuantity(ctx, productID, quantity)
	})
}

// Remove drops the line from the cart. Removing an absent product is a
// no-op.
func (c *Container) Remove(ctx context.Context, productID uuid.UUID) error {
	c.mu.Lock()
	return c.removeLocked(ctx, productID)
}

// removeLocked applies the optimistic remove. c.mu must be held; it is
// released before the server call.
func (c *Container) removeLocked(ctx context.Context, productID uuid.UUID) error {
	snap := c.snapshotLocked(productID)
	if !snap.existed {
		c.mu.Unlock()
		return nil
	}
	delete(c.items, productID)
	c.removeFromOrderLocked(productID)
	generation := c.session.Generation()
	c.mu.Unlock()

	return c.confirm(ctx, "remove", productID, snap, generation, func() error {
		return c.api.CartRemove(ctx, productID)
	})
}

// Toggle adds one unit of the product when absent and removes the line when
// present, so two consecutive toggles restore the starting membership. The
// branch resolves under the same lock that applies the mutation, so two
// racing toggles cannot act on one observation.
func (c *Container) Toggle(ctx context.Context, product catalog.Product) error {
	c.mu.Lock()
	if _, ok := c.items[product.ID]; ok {
		return c.removeLocked(ctx, product.ID)
	}
	return c.addLocked(ctx, product, 1)
}

// confirm runs the server call for an already-applied local mutation and
// rolls the line back if the call fails within the same session generation.
func (c *Container) confirm(ctx context.Context, op string, productID uuid.UUID, snap snapshot, generation uint64, call func() error) error {
	err := call()
	if err == nil {
		c.metrics.IncMutation(containerName, op, metrics.OutcomeSuccess)
		return nil
	}

	c.metrics.IncMutation(containerName, op, metrics.OutcomeFailure)
	c.mu.Lock()
	if c.session.Generation() == generation {
		c.restoreLocked(productID, snap)
	}
	c.mu.Unlock()

	if c.logg != nil {
		c.logg.Warn(ctx, "cart mutation rejected, local state rolled back")
	}
	return err
}

// Items returns the cart lines in insertion order.
func (c *Container) Items() []catalog.CartItem {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]catalog.CartItem, 0, len(c.order))
	for _, id := range c.order {
		if item, ok := c.items[id]; ok {
			out = append(out, item)
		}
	}
	return out
}

// Quantity reports the quantity of the given line, zero when absent.
func (c *Container) Quantity(productID uuid.UUID) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.items[productID].Quantity
}

// Len reports the number of distinct lines.
func (c *Container) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.items)
}

// Subtotal sums the line totals of every line.
func (c *Container) Subtotal() decimal.Decimal {
	c.mu.Lock()
	defer c.mu.Unlock()
	total := decimal.Zero
	for _, item := range c.items {
		total = total.Add(item.LineTotal())
	}
	return total
}

// Reset clears the local cart without contacting the server. The session
// manager calls this through the invalidator when identity changes.
func (c *Container) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items = make(map[uuid.UUID]catalog.CartItem)
	c.order = nil
}
