package interfaces

import "context"

// RunLock guards a named run across processes. TryAcquire returns ok=false
// without error when another holder has the lock.
type RunLock interface {
	TryAcquire(ctx context.Context, name string) (release func(), ok bool, err error)
}
