package sessionstore

import (
	"context"
	"errors"
	"time"

	"github.com/angelmondragon/packfinderz-storefront/pkg/types"
)

// ErrNotFound signals that no session record is persisted.
var ErrNotFound = errors.New("session record not found")

// Record is the single serialized session blob written to durable client
// storage on every successful login or refresh and deleted on logout.
type Record struct {
	Identity     types.Identity `json:"identity"`
	AccessToken  string         `json:"access_token"`
	RefreshToken string         `json:"refresh_token"`
	SavedAt      time.Time      `json:"saved_at"`
}

// Store is pure key/value I/O for the session record; it holds no logic of
// its own.
type Store interface {
	Load(ctx context.Context) (*Record, error)
	Save(ctx context.Context, record *Record) error
	Delete(ctx context.Context) error
}
