package applet

import "github.com/kjstillabower/wind-applet/internal/models"

// PopupID identifies an open popover. The empty ID means no popover.
type PopupID string

// Event is an input to the applet state machine.
type Event interface {
	eventName() string
}

// Tick is the periodic refresh.
type Tick struct{}

// ToggleWindow opens the popover when closed and closes it when open.
type ToggleWindow struct{}

// PopupClosed reports that the host closed the popover with the given ID.
type PopupClosed struct {
	ID PopupID
}

// UpdateObservation delivers a completed fetch.
type UpdateObservation struct {
	Observation models.Observation
}

// UpdateLatitude carries the latitude field text as typed.
type UpdateLatitude struct {
	Text string
}

// UpdateLongitude carries the longitude field text as typed.
type UpdateLongitude struct {
	Text string
}

// ToggleFahrenheit sets the unit preference.
type ToggleFahrenheit struct {
	Enabled bool
}

func (Tick) eventName() string              { return "tick" }
func (ToggleWindow) eventName() string      { return "toggle_window" }
func (PopupClosed) eventName() string       { return "popup_closed" }
func (UpdateObservation) eventName() string { return "update_observation" }
func (UpdateLatitude) eventName() string    { return "update_latitude" }
func (UpdateLongitude) eventName() string   { return "update_longitude" }
func (ToggleFahrenheit) eventName() string  { return "toggle_fahrenheit" }

// EventName returns the stable label used for e in logs and metrics.
func EventName(e Event) string {
	if e == nil {
		return "unknown"
	}
	return e.eventName()
}

// Command is work requested by a transition and carried out by the Runtime.
type Command interface {
	isCommand()
}

// FetchObservation asks for one station fetch for Location.
type FetchObservation struct {
	Location models.Location
}

// ShowPopup asks the presentation layer to show the popover.
type ShowPopup struct {
	ID PopupID
}

// DestroyPopup asks the presentation layer to destroy the popover.
type DestroyPopup struct {
	ID PopupID
}

func (FetchObservation) isCommand() {}
func (ShowPopup) isCommand()        {}
func (DestroyPopup) isCommand()     {}
