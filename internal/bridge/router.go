package bridge

import (
	"net/http"

	"github.com/gorilla/mux"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/kjstillabower/wind-applet/internal/observability"
)

// NewRouter mounts the bridge routes. Event routes are rate limited when
// limiter is non-nil.
func NewRouter(h *Handler, logger *zap.Logger, limiter *rate.Limiter) *mux.Router {
	router := mux.NewRouter()
	router.Use(CorrelationIDMiddleware(logger))
	router.Use(MetricsMiddleware)
	router.HandleFunc("/health", h.GetHealth).Methods(http.MethodGet)
	router.Handle("/metrics", observability.MetricsHandler()).Methods(http.MethodGet)
	router.HandleFunc("/state", h.GetState).Methods(http.MethodGet)

	events := router.NewRoute().Subrouter()
	events.Use(RateLimitMiddleware(limiter))
	events.HandleFunc("/popup/toggle", h.ToggleWindow).Methods(http.MethodPost)
	events.HandleFunc("/popup/{id}/closed", h.PopupClosed).Methods(http.MethodPost)
	events.HandleFunc("/location/latitude", h.UpdateLatitude).Methods(http.MethodPut)
	events.HandleFunc("/location/longitude", h.UpdateLongitude).Methods(http.MethodPut)
	events.HandleFunc("/units/fahrenheit", h.ToggleFahrenheit).Methods(http.MethodPut)
	return router
}
