// Package organizer routes host commands to their handlers and owns the
// relay session.
//
// Organizer.Call(name, data) looks name up in a fixed command table:
//
//	setup    replace the backend endpoint; no result
//	echo     return data unchanged
//	mission  register a mission synchronously; "OK" or "-1"
//	event    enrich and enqueue a telemetry event; "OK" or "ERROR"
//
// Unknown names yield no result. Every call runs inside a fault boundary: a
// panic in any handler is recovered and logged with its stack, and the call
// yields no result. The host process never sees it.
//
// The session (endpoint, mission id) is only touched on the calling side.
// Events are rendered completely before they are queued, destination URL
// included, so the relay worker started by New never reads session state.
// Close releases the queue's producer side; Wait joins the worker once every
// queued event has been attempted.
package organizer
