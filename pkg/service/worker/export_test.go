package worker

import "context"

// RunStopped runs the trigger loop of a worker whose Stop was already
// requested
func (w *SyncWorker) RunStopped(ctx context.Context) {
	close(w.stopCh)
	w.run(ctx)
}
