package organizer

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/armastats/relay/agent/internal/transport"
)

// mission registers a mission with the backend and stores the id it returns.
// It blocks on the network; registrations happen once per session.
func (o *Organizer) mission(data string) (string, bool) {
	fail := func(msg string, args ...any) (string, bool) {
		slog.Warn("organizer: mission registration failed: "+msg, args...)
		o.metrics.MissionFailed()
		return StatusMissionFailed, true
	}

	if !json.Valid([]byte(data)) {
		return fail("invalid json")
	}
	if !o.sess.hasEndpoint {
		return fail("no endpoint configured")
	}

	ctx := context.Background()
	if o.registerTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, o.registerTimeout)
		defer cancel()
	}

	url := o.sess.missionsURL()
	resp, err := o.tr.Post(ctx, url, []byte(data))
	if err != nil {
		var se *transport.StatusError
		if errors.As(err, &se) {
			return fail("post", "url", url, "status", se.StatusCode,
				"body", se.Snippet(transport.SnippetSize))
		}
		return fail("post", "url", url, "err", err)
	}

	id, err := parseMissionID(resp.Body)
	if err != nil {
		return fail("bad response", "url", url, "err", err)
	}

	o.sess.missionID = id
	o.metrics.MissionRegistered()
	slog.Info("organizer: mission registered", "mission_id", id)
	return StatusOK, true
}

// parseMissionID extracts the integer "id" of a registration response. The
// id may be a JSON number or a string holding one; either must be written as
// an int64, so 1.0 and 1e2 are rejected.
func parseMissionID(body []byte) (int64, error) {
	var resp struct {
		ID json.RawMessage `json:"id"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return 0, fmt.Errorf("decode response: %w", err)
	}
	if len(resp.ID) == 0 {
		return 0, errors.New("response has no id")
	}

	dec := json.NewDecoder(bytes.NewReader(resp.ID))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return 0, fmt.Errorf("decode id: %w", err)
	}

	var raw string
	switch t := v.(type) {
	case json.Number:
		raw = t.String()
	case string:
		raw = t
	default:
		return 0, fmt.Errorf("id has unsupported type %T", v)
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("id %q is not an integer: %w", raw, err)
	}
	return id, nil
}
