package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/nerrad567/gray-logic-bthome/internal/bridges/health"
	"github.com/nerrad567/gray-logic-bthome/internal/metrics"
	"github.com/nerrad567/gray-logic-bthome/internal/panel"
)

// buildRouter creates the HTTP router with all routes and middleware.
func (s *Server) buildRouter() http.Handler {
	r := chi.NewRouter()

	r.Use(s.requestIDMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(s.recoveryMiddleware)
	r.Use(s.corsMiddleware)

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		writeNotFound(w, "no such endpoint")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, ErrCodeMethodNotAllow, "the API is read-only")
	})

	if s.gatherer != nil {
		r.Method(http.MethodGet, "/metrics", metrics.Handler(s.gatherer))
	}

	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/panel/", http.StatusFound)
	})
	r.Mount("/panel", http.StripPrefix("/panel", panel.Handler(s.cfg.PanelDir)))

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", s.handleHealth)
		r.Get("/system", s.handleSystem)

		r.Route("/devices", func(r chi.Router) {
			r.Get("/", s.handleListDevices)
			r.Get("/{id}", s.handleGetDevice)
		})

		r.Get("/zigbee2mqtt/devices", s.handleListZigbee2MQTTDevices)
		r.Get("/topics", s.handleListTopics)
		r.Get("/ws", s.handleWebSocket)
	})

	return r
}

// HealthResponse is the body of GET /api/v1/health.
type HealthResponse struct {
	Status        string                  `json:"status"`
	Version       string                  `json:"version"`
	UptimeSeconds int64                   `json:"uptime_seconds"`
	MQTTConnected bool                    `json:"mqtt_connected"`
	Devices       int                     `json:"devices"`
	Bridges       map[string]health.Stats `json:"bridges,omitempty"`
	WSClients     int                     `json:"websocket_clients"`
}

// handleHealth reports "ok" when MQTT is up and every bridge is running,
// "degraded" otherwise.
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	resp := HealthResponse{
		Status:        "ok",
		Version:       s.version,
		UptimeSeconds: int64(time.Since(s.startTime).Seconds()),
		MQTTConnected: s.mqtt == nil || s.mqtt.IsConnected(),
		Devices:       len(s.devices.Devices()),
		WSClients:     s.hub.ClientCount(),
	}
	if !resp.MQTTConnected {
		resp.Status = "degraded"
	}
	if len(s.bridges) > 0 {
		resp.Bridges = make(map[string]health.Stats, len(s.bridges))
		for name, src := range s.bridges {
			st := src.Stats()
			resp.Bridges[name] = st
			if !st.Running {
				resp.Status = "degraded"
			}
		}
	}
	writeJSON(w, http.StatusOK, resp)
}
