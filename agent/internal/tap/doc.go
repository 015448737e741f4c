// Package tap streams relay delivery outcomes to WebSocket observers.
//
// Hub implements the relay worker's Observer interface. Each Observe call
// encodes the delivery once and fans it out to every connected client without
// blocking: a client whose outgoing buffer is full is disconnected instead of
// slowing the worker down.
//
// Message format sent to clients:
//
//	{
//	  "event": "delivery",
//	  "data":  { "destination": "...", "outcome": "delivered", ... }
//	}
//
// The upgrader accepts all origins. The hub is mounted at /ws/tap on the
// diagnostics listener, which is meant to be bound to localhost.
package tap
