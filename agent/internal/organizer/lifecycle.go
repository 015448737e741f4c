package organizer

import "context"

// Close releases the producer side of the event queue. Later "event" calls
// return "ERROR"; events already queued are still delivered. Close is
// idempotent.
func (o *Organizer) Close() {
	o.queue.Close()
}

// Wait blocks until the relay worker has exited. It only returns after Close.
func (o *Organizer) Wait() {
	<-o.done
}

// Shutdown closes the queue and waits for the worker to drain it, giving up
// when ctx ends. Events still queued at that point stay with the worker.
func (o *Organizer) Shutdown(ctx context.Context) error {
	o.Close()
	select {
	case <-o.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
