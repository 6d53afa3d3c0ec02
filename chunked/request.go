package chunked

import (
	"context"
)

// RequestID identifies a pending request within a Manager.
type RequestID int

// Request is the future returned by the Manager's request methods. It
// resolves exactly once, either when every chunk it needs has been loaded
// or with an error when the transport fails or the manager is aborted.
type Request struct {
	id RequestID
	m  *Manager

	// guarded by m.mu
	done bool
	err  error
}

// ID returns the request's identifier.
func (r *Request) ID() RequestID { return r.id }

// Done reports whether the request has resolved. Deliveries are only
// applied by Wait, so Done can stay false while data sits in the queue.
func (r *Request) Done() bool {
	done, _ := r.status()
	return done
}

// Err returns the error the request was rejected with, if any.
func (r *Request) Err() error {
	_, err := r.status()
	return err
}

func (r *Request) status() (bool, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	return r.done, r.err
}

// Wait applies queued deliveries until the request resolves, the context
// ends, or no fetch remains that could resolve it. Wait must be called from
// the goroutine that reads the Stream.
func (r *Request) Wait(ctx context.Context) error {
	m := r.m
	for {
		m.pump()

		m.mu.Lock()
		done, err := r.done, r.err
		idle := m.inflight == 0 && len(m.queue) == 0
		m.mu.Unlock()

		if done {
			return err
		}
		if idle {
			return ErrStalled
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-m.notify:
		}
	}
}
