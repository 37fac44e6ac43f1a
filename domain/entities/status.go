package entities

import "time"

// Counters holds the reward and hydration tallies plus the last
// check-in instant. It is the only piece of dashboard state that is
// not a list.
type Counters struct {
	Stars      int       `json:"stars" bson:"stars"`
	WaterCount int       `json:"water_count" bson:"water_count"`
	LastCheck  time.Time `json:"last_check" bson:"last_check"`
}

// MinutesSinceCheck reports whole minutes elapsed since the last
// recorded check-in, relative to now.
func (c Counters) MinutesSinceCheck(now time.Time) int {
	if c.LastCheck.IsZero() {
		return 0
	}
	return int(now.Sub(c.LastCheck).Minutes())
}

// StatusSnapshot is the read-only view the companion session consumes
// once at start to seed its conversational context.
type StatusSnapshot struct {
	PendingTaskCount      int          `json:"pending_task_count"`
	MinutesSinceLastCheck int          `json:"minutes_since_last_check"`
	NextAppointment       *Appointment `json:"next_appointment,omitempty"`
}
