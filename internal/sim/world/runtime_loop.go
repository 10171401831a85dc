package world

import (
	"context"
	"errors"
	"time"
)

var ErrStopped = errors.New("world stopped")

type request struct {
	fn   func(w *World) error
	resp chan error
}

func (w *World) Run(ctx context.Context) error {
	interval := time.Second / time.Duration(w.cfg.FrameRateHz)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	var pendingEdits []request

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-w.stop:
			return nil
		case req := <-w.queries:
			req.resp <- req.fn(w)
		case req := <-w.edits:
			pendingEdits = append(pendingEdits, req)
		case <-ticker.C:
			for _, req := range pendingEdits {
				req.resp <- req.fn(w)
			}
			pendingEdits = pendingEdits[:0]
			if _, err := w.StepOnce(ctx); err != nil {
				return err
			}
		}
	}
}

func (w *World) Stop() { close(w.stop) }

// Submit queues fn for the tool phase of the next frame and waits until it
// has run. Submitted edits apply in arrival order.
func (w *World) Submit(ctx context.Context, fn func(w *World) error) error {
	return w.send(ctx, w.edits, fn)
}

// Do runs fn between frames as soon as the loop is idle. Use it for reads.
func (w *World) Do(ctx context.Context, fn func(w *World) error) error {
	return w.send(ctx, w.queries, fn)
}

func (w *World) send(ctx context.Context, ch chan request, fn func(w *World) error) error {
	select {
	case <-w.stop:
		return ErrStopped
	default:
	}
	req := request{fn: fn, resp: make(chan error, 1)}
	select {
	case ch <- req:
	case <-ctx.Done():
		return ctx.Err()
	case <-w.stop:
		return ErrStopped
	}
	select {
	case err := <-req.resp:
		return err
	case <-ctx.Done():
		return ctx.Err()
	case <-w.stop:
		return ErrStopped
	}
}
