package handler

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/yourorg/aquamonitor/internal/domain"
	"github.com/yourorg/aquamonitor/internal/feed"
	"github.com/yourorg/aquamonitor/internal/observability/metrics"
	"github.com/yourorg/aquamonitor/internal/security/middleware"
)

// LiveFeedHandler streams new measurements for one aquarium over WebSocket
type LiveFeedHandler struct {
	broker         *feed.Broker
	aquariumRepo   domain.AquariumRepository
	allowedOrigins []string
	logger         *slog.Logger
}

// NewLiveFeedHandler creates a new live feed handler
func NewLiveFeedHandler(broker *feed.Broker, aquariumRepo domain.AquariumRepository, allowedOrigins []string, logger *slog.Logger) *LiveFeedHandler {
	if logger == nil {
		logger = slog.Default()
	}

	return &LiveFeedHandler{
		broker:         broker,
		aquariumRepo:   aquariumRepo,
		allowedOrigins: allowedOrigins,
		logger:         logger,
	}
}

// upgrader is initialized per-request to use the instance's allowed origins
func (h *LiveFeedHandler) getUpgrader() websocket.Upgrader {
	return websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			if origin == "" {
				// Non-browser clients send no origin
				return true
			}
			for _, allowed := range h.allowedOrigins {
				if origin == allowed {
					return true
				}
			}
			h.logger.Warn("websocket origin rejected", slog.String("origin", origin))
			return false
		},
	}
}

// ServeHTTP handles GET /ws/aquariums/{aquariumID}/measurements
func (h *LiveFeedHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	claims := middleware.GetClaimsFromContext(r.Context())
	if claims == nil {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	aquariumID, err := pathID(r, "aquariumID")
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	// Ownership check before the upgrade; afterwards there is no HTTP
	// status to answer with.
	if _, err := h.aquariumRepo.Get(r.Context(), claims.UserID, aquariumID); err != nil {
		http.Error(w, "aquarium not found", http.StatusNotFound)
		return
	}

	upgrader := h.getUpgrader()
	ws, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Error("websocket upgrade failed", slog.String("error", err.Error()))
		return
	}
	defer ws.Close()

	events, cancel := h.broker.Subscribe(aquariumID)
	defer cancel()

	metrics.IncrementFeedClients()
	defer metrics.DecrementFeedClients()

	h.logger.Debug("live feed opened",
		slog.Int64("user_id", claims.UserID),
		slog.Int64("aquarium_id", aquariumID),
	)

	// Reader goroutine notices the client going away; we never expect
	// payloads from it.
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := ws.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(15 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case m, ok := <-events:
			if !ok {
				return
			}
			if err := ws.WriteJSON(toMeasurementResponse(m)); err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
					h.logger.Debug("websocket closed", slog.Int64("aquarium_id", aquariumID))
				}
				return
			}
		case <-ticker.C:
			_ = ws.WriteControl(websocket.PingMessage, []byte("ping"), time.Now().Add(5*time.Second))
		case <-closed:
			return
		case <-r.Context().Done():
			return
		}
	}
}
