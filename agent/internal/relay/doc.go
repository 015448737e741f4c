// Package relay moves pre-rendered events from the calling thread to the
// backend without ever blocking the caller.
//
// Queue is an unbounded FIFO with many producers and one consumer. Push never
// blocks; Pop blocks until an item arrives and reports false only once the
// queue has been closed and fully drained. Close is the shutdown signal.
//
// Worker.Run is the single consumer. Each item is POSTed once; a failure the
// transport classifies as a stale connection is retried exactly once, any
// other failure drops the item. Dropped items are handed to an optional
// DeadLetter sink, and every outcome is reported to Observers as a
// types.Delivery. Run returns after the queue is closed and empty.
package relay
