// Package applet holds the panel applet state machine and the event loop that
// drives it.
//
// Applet is a pure state machine: Update applies one event and returns the
// commands it wants executed. It never blocks on the network. Runtime feeds it
// events from a single queue and turns commands into fetch goroutines and
// presentation calls, so all state mutation happens on one goroutine.
package applet

import (
	"strconv"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/kjstillabower/wind-applet/internal/models"
	"github.com/kjstillabower/wind-applet/internal/observability"
	"github.com/kjstillabower/wind-applet/internal/settings"
	"github.com/kjstillabower/wind-applet/internal/validation"
)

// Applet is the state machine. It is not safe for concurrent use; Runtime
// serialises access.
type Applet struct {
	store  settings.Store
	logger *zap.Logger
	newID  func() PopupID
	now    func() time.Time

	location      models.Location
	useFahrenheit bool
	observation   models.Observation
	popup         PopupID
	latitudeText  string
	longitudeText string
}

// Option customises an Applet.
type Option func(*Applet)

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(a *Applet) {
		if logger != nil {
			a.logger = logger
		}
	}
}

// WithIDGenerator replaces the popup ID source.
func WithIDGenerator(fn func() PopupID) Option {
	return func(a *Applet) {
		if fn != nil {
			a.newID = fn
		}
	}
}

// WithClock replaces the clock used to pick the panel icon.
func WithClock(fn func() time.Time) Option {
	return func(a *Applet) {
		if fn != nil {
			a.now = fn
		}
	}
}

// New builds an Applet from the persisted settings. store may be nil, in which
// case the applet starts at 0,0 in Celsius and edits only live in memory.
func New(store settings.Store, opts ...Option) *Applet {
	a := &Applet{
		store:  store,
		logger: zap.NewNop(),
		newID:  func() PopupID { return PopupID(uuid.NewString()) },
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(a)
	}
	if store != nil {
		a.location = store.Location()
		a.useFahrenheit = store.UseFahrenheit()
	}
	a.latitudeText = formatCoordinate(a.location.Latitude)
	a.longitudeText = formatCoordinate(a.location.Longitude)
	return a
}

func formatCoordinate(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// Update applies e and returns the commands it requires.
func (a *Applet) Update(e Event) []Command {
	switch ev := e.(type) {
	case Tick:
		return a.fetch()

	case ToggleWindow:
		if a.popup != "" {
			id := a.popup
			a.popup = ""
			observability.RecordPopup(false)
			return []Command{DestroyPopup{ID: id}}
		}
		a.popup = a.nextPopupID()
		observability.RecordPopup(true)
		return []Command{ShowPopup{ID: a.popup}}

	case PopupClosed:
		if a.popup != "" && a.popup == ev.ID {
			a.popup = ""
			observability.RecordPopup(false)
			return nil
		}
		a.logger.Debug("ignoring stale popup close",
			zap.String("closed_id", string(ev.ID)),
			zap.String("current_id", string(a.popup)))
		return nil

	case UpdateObservation:
		a.observation = ev.Observation
		return nil

	case UpdateLatitude:
		a.latitudeText = ev.Text
		a.location.Latitude = a.parseCoordinate("latitude", ev.Text)
		a.persist("latitude", func(s settings.Store) error { return s.SetLatitude(a.location.Latitude) })
		return a.fetch()

	case UpdateLongitude:
		a.longitudeText = ev.Text
		a.location.Longitude = a.parseCoordinate("longitude", ev.Text)
		a.persist("longitude", func(s settings.Store) error { return s.SetLongitude(a.location.Longitude) })
		return a.fetch()

	case ToggleFahrenheit:
		a.useFahrenheit = ev.Enabled
		a.persist("use_fahrenheit", func(s settings.Store) error { return s.SetUseFahrenheit(ev.Enabled) })
		return nil

	default:
		a.logger.Warn("unknown applet event", zap.String("event", EventName(e)))
		return nil
	}
}

// nextPopupID never returns "", which would read as no popup.
func (a *Applet) nextPopupID() PopupID {
	if id := a.newID(); id != "" {
		return id
	}
	a.logger.Warn("popup id generator returned empty id, using uuid")
	return PopupID(uuid.NewString())
}

func (a *Applet) fetch() []Command {
	return []Command{FetchObservation{Location: a.location}}
}

// parseCoordinate commits 0 for text that is not a finite number.
// TODO: surface invalid coordinate input in the popover instead of committing 0.
func (a *Applet) parseCoordinate(field, text string) float64 {
	v, err := validation.CoordinateOrZero(text)
	if err != nil {
		a.logger.Debug("coordinate input not a number, using 0",
			zap.String("field", field),
			zap.Error(err))
	}
	return v
}

// persist writes through to the store. Failures are logged; the in-memory value
// stays as the source of truth.
func (a *Applet) persist(field string, write func(settings.Store) error) {
	if a.store == nil {
		return
	}
	if err := write(a.store); err != nil {
		observability.SettingsWriteErrorsTotal.WithLabelValues(field).Inc()
		a.logger.Error("failed to persist setting", zap.String("field", field), zap.Error(err))
	}
}

// Snapshot is the read-only view rendered by the presentation layer.
type Snapshot struct {
	Observation   models.Observation `json:"observation"`
	WindDetails   string             `json:"windDetails"`
	Icon          string             `json:"icon"`
	Popup         PopupID            `json:"popup,omitempty"`
	PopupOpen     bool               `json:"popupOpen"`
	LatitudeText  string             `json:"latitudeText"`
	LongitudeText string             `json:"longitudeText"`
	Location      models.Location    `json:"location"`
	UseFahrenheit bool               `json:"useFahrenheit"`
}

// Snapshot returns the current state.
func (a *Applet) Snapshot() Snapshot {
	return Snapshot{
		Observation:   a.observation,
		WindDetails:   a.observation.WindDetails(),
		Icon:          models.IconFor(a.now()),
		Popup:         a.popup,
		PopupOpen:     a.popup != "",
		LatitudeText:  a.latitudeText,
		LongitudeText: a.longitudeText,
		Location:      a.location,
		UseFahrenheit: a.useFahrenheit,
	}
}
