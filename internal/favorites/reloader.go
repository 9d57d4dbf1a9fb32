package favorites

import (
	"context"
	"errors"
	"sync"
)

// ErrSuperseded is returned by Reloader.Run when a newer run started before
// this one finished. Whatever the older run produced should be discarded.
var ErrSuperseded = errors.New("reload superseded")

// Reloader keeps at most one reload in flight: starting a run cancels the
// previous one (last request wins).
type Reloader struct {
	mu     sync.Mutex
	seq    uint64
	cancel context.CancelFunc
}

// Run cancels any in-flight run and calls fn with a context that is cancelled
// by the next Run. fn should check ctx before writing results back.
func (r *Reloader) Run(ctx context.Context, fn func(ctx context.Context) error) error {
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	r.mu.Lock()
	if r.cancel != nil {
		r.cancel()
	}
	r.seq++
	id := r.seq
	r.cancel = cancel
	r.mu.Unlock()

	err := fn(runCtx)

	r.mu.Lock()
	latest := r.seq == id
	if latest {
		r.cancel = nil
	}
	r.mu.Unlock()

	if !latest {
		return ErrSuperseded
	}
	return err
}
