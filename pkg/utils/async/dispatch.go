package async

import (
	"context"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/casesync/pkg/utils/errutil"
	"github.com/secmon-lab/casesync/pkg/utils/logging"
)

// Dispatch runs handler in a new goroutine detached from the caller's
// cancellation. The caller's logger is carried over. Errors and panics are
// reported through errutil.
func Dispatch(ctx context.Context, name string, handler func(ctx context.Context) error) {
	bgCtx := logging.With(context.Background(), logging.From(ctx).With("task", name))

	go func() {
		defer func() {
			if r := recover(); r != nil {
				_ = errutil.Handle(bgCtx, goerr.New("panic in async handler", goerr.V("panic", r)), "async task panicked")
			}
		}()

		if err := handler(bgCtx); err != nil {
			_ = errutil.Handle(bgCtx, err, "async task failed")
		}
	}()
}
