// Package bridge is the local HTTP surface between the applet loop and the
// external presentation layer. The presentation layer reads snapshots from it
// and posts user input back as applet events.
package bridge

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/kjstillabower/wind-applet/internal/applet"
	"github.com/kjstillabower/wind-applet/internal/traffic"
)

// maxTextBytes bounds coordinate field bodies.
const maxTextBytes = 256

// EventPoster queues events for the applet loop.
type EventPoster interface {
	Post(ctx context.Context, e applet.Event) error
}

// Handler serves the bridge routes and implements applet.Presenter.
type Handler struct {
	poster       EventPoster
	logger       *zap.Logger
	shuttingDown atomic.Bool

	mu       sync.RWMutex
	snapshot applet.Snapshot
	updated  time.Time

	health           HealthConfig
	healthStatusMu   sync.Mutex
	healthStatusPrev string
}

// HealthConfig drives the degraded check on /health. A nil Outcomes or a
// zero Window or ErrorPct disables it.
type HealthConfig struct {
	Outcomes *traffic.Tracker
	Window   time.Duration
	ErrorPct int
}

type healthResult struct {
	status     string
	statusCode int
	reason     string
}

// NewHandler returns a Handler posting to poster. poster may be set later
// with SetPoster when the loop is built after the bridge.
func NewHandler(poster EventPoster, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{poster: poster, logger: logger}
}

// SetPoster sets the event destination. Call before serving.
func (h *Handler) SetPoster(poster EventPoster) {
	h.poster = poster
}

// SetHealthConfig enables the station error-rate check. Call before serving.
func (h *Handler) SetHealthConfig(cfg HealthConfig) {
	h.health = cfg
}

// SetShuttingDown flips /health to 503 and rejects new events while draining.
func (h *Handler) SetShuttingDown(v bool) {
	h.shuttingDown.Store(v)
}

// Render implements applet.Presenter.
func (h *Handler) Render(s applet.Snapshot) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.snapshot = s
	h.updated = time.Now()
}

// ShowPopup implements applet.Presenter. The popup ID is published through
// the next snapshot; the host opens its popover when it sees it.
func (h *Handler) ShowPopup(id applet.PopupID) {
	h.logger.Info("popup show requested", zap.String("popup_id", string(id)))
}

// DestroyPopup implements applet.Presenter.
func (h *Handler) DestroyPopup(id applet.PopupID) {
	h.logger.Info("popup destroy requested", zap.String("popup_id", string(id)))
}

// Snapshot returns the last rendered snapshot.
func (h *Handler) Snapshot() applet.Snapshot {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.snapshot
}

type stateResponse struct {
	applet.Snapshot
	UpdatedAt string `json:"updatedAt,omitempty"`
}

// GetState handles GET /state.
func (h *Handler) GetState(w http.ResponseWriter, r *http.Request) {
	h.mu.RLock()
	resp := stateResponse{Snapshot: h.snapshot}
	if !h.updated.IsZero() {
		resp.UpdatedAt = h.updated.UTC().Format(time.RFC3339)
	}
	h.mu.RUnlock()
	writeJSON(w, http.StatusOK, resp)
}

// ToggleWindow handles POST /popup/toggle.
func (h *Handler) ToggleWindow(w http.ResponseWriter, r *http.Request) {
	h.post(w, r, applet.ToggleWindow{})
}

// PopupClosed handles POST /popup/{id}/closed.
func (h *Handler) PopupClosed(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	if id == "" {
		writeError(w, r, http.StatusBadRequest, "INVALID_POPUP", "popup id is required")
		return
	}
	h.post(w, r, applet.PopupClosed{ID: applet.PopupID(id)})
}

// UpdateLatitude handles PUT /location/latitude. The body is the field text as typed.
func (h *Handler) UpdateLatitude(w http.ResponseWriter, r *http.Request) {
	text, ok := h.readText(w, r)
	if !ok {
		return
	}
	h.post(w, r, applet.UpdateLatitude{Text: text})
}

// UpdateLongitude handles PUT /location/longitude.
func (h *Handler) UpdateLongitude(w http.ResponseWriter, r *http.Request) {
	text, ok := h.readText(w, r)
	if !ok {
		return
	}
	h.post(w, r, applet.UpdateLongitude{Text: text})
}

type fahrenheitRequest struct {
	Enabled *bool `json:"enabled"`
}

// ToggleFahrenheit handles PUT /units/fahrenheit with body {"enabled": bool}.
func (h *Handler) ToggleFahrenheit(w http.ResponseWriter, r *http.Request) {
	var req fahrenheitRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, maxTextBytes)).Decode(&req); err != nil || req.Enabled == nil {
		writeError(w, r, http.StatusBadRequest, "INVALID_BODY", `body must be {"enabled": true|false}`)
		return
	}
	h.post(w, r, applet.ToggleFahrenheit{Enabled: *req.Enabled})
}

// GetHealth handles GET /health.
func (h *Handler) GetHealth(w http.ResponseWriter, r *http.Request) {
	result := h.computeHealthStatus()

	h.healthStatusMu.Lock()
	prev := h.healthStatusPrev
	if prev != "" && prev != result.status {
		h.logger.Info("health status transition",
			zap.String("previous_status", prev),
			zap.String("current_status", result.status),
			zap.String("reason", result.reason))
	}
	h.healthStatusPrev = result.status
	h.healthStatusMu.Unlock()

	station := "healthy"
	if result.reason == "error_rate_breach" {
		station = "unhealthy"
	}
	writeJSON(w, result.statusCode, map[string]interface{}{
		"status":    result.status,
		"service":   "wind-applet",
		"checks":    map[string]string{"station": station},
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

// computeHealthStatus evaluates shutting-down, then the station error rate.
// The applet keeps running while degraded, so degraded is still 200.
func (h *Handler) computeHealthStatus() healthResult {
	if h.shuttingDown.Load() {
		return healthResult{"shutting-down", http.StatusServiceUnavailable, "signal"}
	}
	cfg := h.health
	if cfg.Outcomes != nil && cfg.Window > 0 && cfg.ErrorPct > 0 {
		errors, total := cfg.Outcomes.ErrorRate(cfg.Window)
		if total > 0 && float64(errors)*100/float64(total) >= float64(cfg.ErrorPct) {
			return healthResult{"degraded", http.StatusOK, "error_rate_breach"}
		}
	}
	return healthResult{"healthy", http.StatusOK, ""}
}

func (h *Handler) readText(w http.ResponseWriter, r *http.Request) (string, bool) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxTextBytes+1))
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "INVALID_BODY", "could not read body")
		return "", false
	}
	if len(body) > maxTextBytes {
		writeError(w, r, http.StatusRequestEntityTooLarge, "BODY_TOO_LARGE", "field text too long")
		return "", false
	}
	return string(body), true
}

func (h *Handler) post(w http.ResponseWriter, r *http.Request, e applet.Event) {
	name := applet.EventName(e)
	if h.shuttingDown.Load() || h.poster == nil {
		writeError(w, r, http.StatusServiceUnavailable, "UNAVAILABLE", "applet is not accepting events")
		return
	}
	if err := h.poster.Post(r.Context(), e); err != nil {
		requestLogger(r, h.logger).Warn("event not queued", zap.String("event", name), zap.Error(err))
		if errors.Is(err, applet.ErrStopped) {
			writeError(w, r, http.StatusServiceUnavailable, "UNAVAILABLE", "applet loop stopped")
			return
		}
		writeError(w, r, http.StatusServiceUnavailable, "UNAVAILABLE", "event not queued")
		return
	}
	requestLogger(r, h.logger).Debug("event queued", zap.String("event", name))
	writeJSON(w, http.StatusAccepted, map[string]string{"event": name})
}
