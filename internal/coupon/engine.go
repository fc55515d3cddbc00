package coupon

import (
	"context"
	"strings"
	"sync"

	"github.com/angelmondragon/packfinderz-storefront/internal/apiclient"
	"github.com/angelmondragon/packfinderz-storefront/internal/catalog"
	pkgerrors "github.com/angelmondragon/packfinderz-storefront/pkg/errors"
	"github.com/angelmondragon/packfinderz-storefront/pkg/logger"
	"github.com/angelmondragon/packfinderz-storefront/pkg/metrics"
)

const containerName = "coupon"

// ServerAPI is the slice of the storefront API the coupon engine depends
// on.
type ServerAPI interface {
	CouponValidate(ctx context.Context, code string) (*apiclient.CouponResult, error)
}

// GenerationSource reports the current session generation.
type GenerationSource interface {
	Generation() uint64
}

type EngineParams struct {
	API     ServerAPI
	Session GenerationSource
	Logger  *logger.Logger
	Metrics *metrics.SyncMetrics
}

// Engine holds at most one applied coupon. Unlike the cart, a coupon is
// never applied optimistically: it only takes effect once the server has
// validated it, and a rejected code leaves the previous coupon in place.
type Engine struct {
	api     ServerAPI
	session GenerationSource
	logg    *logger.Logger
	metrics *metrics.SyncMetrics

	mu      sync.Mutex
	current *catalog.Coupon
}

func NewEngine(params EngineParams) (*Engine, error) {
	if params.API == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "coupon: API is required")
	}
	if params.Session == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "coupon: Session is required")
	}
	return &Engine{
		api:     params.API,
		session: params.Session,
		logg:    params.Logger,
		metrics: params.Metrics,
	}, nil
}

// Apply validates the code with the server and, on success, replaces the
// current coupon. A failed validation keeps whatever coupon was applied
// before the attempt.
func (e *Engine) Apply(ctx context.Context, code string) error {
	code = strings.TrimSpace(code)
	if code == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "coupon code is required")
	}

	generation := e.session.Generation()
	result, err := e.api.CouponValidate(ctx, code)
	if err != nil {
		e.metrics.IncMutation(containerName, "apply", metrics.OutcomeFailure)
		if e.logg != nil {
			e.logg.Warn(ctx, "coupon rejected, keeping previously applied coupon")
		}
		return err
	}

	e.mu.Lock()
	if e.session.Generation() == generation {
		e.current = &catalog.Coupon{
			Code:            result.Code,
			DiscountPercent: result.DiscountPercent,
			Applied:         true,
		}
	}
	e.mu.Unlock()

	e.metrics.IncMutation(containerName, "apply", metrics.OutcomeSuccess)
	return nil
}

// Remove drops the applied coupon. Removal is purely local; the server is
// only consulted when a code is applied.
func (e *Engine) Remove() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.current = nil
}

// Current returns a copy of the applied coupon, or nil when none is
// applied.
func (e *Engine) Current() *catalog.Coupon {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.current == nil {
		return nil
	}
	copied := *e.current
	return &copied
}

// Reset clears the applied coupon without contacting the server.
func (e *Engine) Reset() {
	e.Remove()
}
