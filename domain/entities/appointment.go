package entities

import (
	"errors"
	"fmt"
	"time"
)

// AppointmentType distinguishes medical visits from everything else.
type AppointmentType string

const (
	AppointmentTypeMedical AppointmentType = "medical"
	AppointmentTypeGeneral AppointmentType = "general"
)

// Appointment is one calendar entry. Date and Time keep the display
// formats the dashboard uses ("Oct 28, 2025", "1:00 PM"); When carries
// the parsed instant used for ordering and "next appointment" lookups.
type Appointment struct {
	ID          string          `json:"id" bson:"_id,omitempty"`
	Date        string          `json:"date" bson:"date"`
	Time        string          `json:"time" bson:"time"`
	Title       string          `json:"title" bson:"title"`
	Location    string          `json:"location,omitempty" bson:"location,omitempty"`
	Description string          `json:"description,omitempty" bson:"description,omitempty"`
	Type        AppointmentType `json:"type" bson:"type"`
	When        time.Time       `json:"when" bson:"when"`
}

const appointmentLayout = "Jan 2, 2006 3:04 PM"

// ParseWhen fills When from the display-format Date and Time fields.
func (a *Appointment) ParseWhen() error {
	when, err := time.ParseInLocation(appointmentLayout, a.Date+" "+a.Time, time.Local)
	if err != nil {
		return fmt.Errorf("invalid appointment date/time %q %q: %w", a.Date, a.Time, err)
	}
	a.When = when
	return nil
}

// Summary renders the one-line form embedded into the companion's
// opening context.
func (a *Appointment) Summary() string {
	return fmt.Sprintf("%s on %s at %s", a.Title, a.Date, a.Time)
}

// Validate validates the appointment data.
func (a *Appointment) Validate() error {
	if a.Title == "" {
		return errors.New("title is required")
	}
	if a.Date == "" || a.Time == "" {
		return errors.New("date and time are required")
	}
	if a.Type != AppointmentTypeMedical && a.Type != AppointmentTypeGeneral {
		return errors.New("invalid appointment type")
	}
	return nil
}
