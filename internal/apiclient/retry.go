package apiclient

import (
	"context"

	pkgerrors "github.com/angelmondragon/packfinderz-storefront/pkg/errors"
)

// withAuthRetry wraps an authenticated call with the refresh-and-retry
// protocol: when the server reports an expired credential, await the shared
// refresh and retry the call exactly once with the new token. A failed
// refresh surfaces the original expiry error unmodified, never the refresh
// error, so callers see the auth failure they actually hit.
func (c *Client) withAuthRetry(ctx context.Context, call func(context.Context) error) error {
	err := call(ctx)
	if err == nil || c.refresher == nil {
		return err
	}
	if pkgerrors.CodeOf(err) != pkgerrors.CodeAuthExpired {
		return err
	}
	if refreshErr := c.refresher.AwaitRefresh(ctx); refreshErr != nil {
		return err
	}
	return call(ctx)
}
