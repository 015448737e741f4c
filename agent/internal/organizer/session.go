package organizer

import (
	"strconv"
	"strings"
)

// session is the mutable pair the host configures. Only the calling side
// reads or writes it.
type session struct {
	endpoint    string
	hasEndpoint bool
	missionID   int64
}

func (s *session) setEndpoint(endpoint string) {
	s.endpoint = endpoint
	s.hasEndpoint = true
}

// missionsURL is {endpoint}/missions.
func (s *session) missionsURL() string {
	return strings.TrimRight(s.endpoint, "/") + "/missions"
}

// eventsURL is {endpoint}/missions/{mission_id}/events for the current mission.
func (s *session) eventsURL() string {
	return s.missionsURL() + "/" + strconv.FormatInt(s.missionID, 10) + "/events"
}
