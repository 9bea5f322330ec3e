package server

import (
	"net/http"

	"github.com/gorilla/websocket"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/PluxCo/testing-platform-old/internal/auth"
	"github.com/PluxCo/testing-platform-old/internal/config"
	"github.com/PluxCo/testing-platform-old/internal/stats"
	"github.com/PluxCo/testing-platform-old/pkg/http/ws"
)

// WSUpgrader handles WebSocket upgrades for the admin event feed.
var WSUpgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
}

// NewHTTPServer wires the admin API, the transport webhook, health,
// metrics and the event feed.
func NewHTTPServer(cfg *config.App, logger zerolog.Logger, pool *pgxpool.Pool, rdb *redis.Client,
	handlers *Handlers, statsHandler *stats.Handler, webhookHandler http.HandlerFunc, hub *ws.Hub) *http.Server {

	mux := http.NewServeMux()

	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		if err := pool.Ping(r.Context()); err != nil {
			http.Error(w, "database unreachable", http.StatusServiceUnavailable)
			return
		}
		if err := rdb.Ping(r.Context()).Err(); err != nil {
			http.Error(w, "settings store unreachable", http.StatusServiceUnavailable)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	mux.Handle("GET /metrics", promhttp.Handler())

	secret := []byte(cfg.Security.ServiceTokenSecret)
	if len(secret) == 0 {
		logger.Warn().Msg("SERVICE_TOKEN_SECRET not configured; admin API is unauthenticated")
	}
	protect := auth.Middleware(secret, logger)

	// Question CRUD
	mux.HandleFunc("GET /v1/questions", handlers.ListQuestions)
	mux.Handle("POST /v1/questions", protect(http.HandlerFunc(handlers.CreateQuestion)))
	mux.HandleFunc("GET /v1/questions/{id}", handlers.GetQuestion)
	mux.Handle("DELETE /v1/questions/{id}", protect(http.HandlerFunc(handlers.DeleteQuestion)))

	// Answer inspection + grading correction
	mux.HandleFunc("GET /v1/answers", handlers.ListAnswers)
	mux.HandleFunc("GET /v1/answers/{id}", handlers.GetAnswer)
	mux.Handle("POST /v1/answers/{id}/points", protect(http.HandlerFunc(handlers.CorrectAnswer)))

	// Person directory
	mux.HandleFunc("GET /v1/persons", handlers.ListPersons)
	mux.HandleFunc("GET /v1/persons/{id}", handlers.GetPerson)
	mux.Handle("POST /v1/persons", protect(http.HandlerFunc(handlers.SavePerson)))
	mux.Handle("DELETE /v1/persons/{id}", protect(http.HandlerFunc(handlers.DeletePerson)))

	// Live scheduler settings
	mux.HandleFunc("GET /v1/settings", handlers.GetSettings)
	mux.Handle("POST /v1/settings", protect(http.HandlerFunc(handlers.UpdateSettings)))

	// Statistics
	if statsHandler != nil {
		mux.HandleFunc("GET /v1/statistics/short", statsHandler.HandleShort)
		mux.HandleFunc("GET /v1/statistics/persons/{id}", statsHandler.HandlePerson)
	}

	// Inbound transport callback
	if webhookHandler != nil {
		mux.HandleFunc("POST /webhook", webhookHandler)
	}

	// Admin event feed
	if hub != nil {
		mux.HandleFunc("GET /ws/events", func(w http.ResponseWriter, r *http.Request) {
			raw, err := WSUpgrader.Upgrade(w, r, nil)
			if err != nil {
				logger.Warn().Err(err).Msg("websocket upgrade failed")
				return
			}
			conn := ws.NewConnection(raw, logger)
			id := hub.RegisterConnection(conn)
			go conn.WritePump()
			go conn.ReadPump(func() { hub.UnregisterConnection(id) })
		})
	}

	return &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: mux,
	}
}
