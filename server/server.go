// Package server assembles the HTTP surface: the webhook endpoint, the
// health summary and the function introspection listing.
package server

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"

	"github.com/atendai/atendai/cache"
	"github.com/atendai/atendai/config"
	"github.com/atendai/atendai/internal/mylog"
	"github.com/atendai/atendai/tool"
	"github.com/atendai/atendai/webhook"
)

type Deps struct {
	Config   *config.RuntimeConfig
	Registry *tool.Registry
	Store    cache.Store
	Webhook  *webhook.Handler
	Logger   *mylog.Logger
}

func NewHandler(d Deps) http.Handler {
	router := mux.NewRouter()

	router.Handle("/webhook", d.Webhook).Methods("POST")
	router.Handle("/webhooks/whaticket", d.Webhook).Methods("POST")
	router.HandleFunc("/webhook", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]any{
			"status": "error",
			"error":  "webhook events must be delivered via POST",
		})
	}).Methods("GET")

	router.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		missing := d.Config.MissingCredentials()

		cacheOK := d.Store.Ping(r.Context()) == nil
		functionsErr := d.Registry.HealthCheck()

		status := "ok"
		if len(missing) > 0 || !cacheOK || functionsErr != nil {
			status = "degraded"
		}

		body := map[string]any{
			"status": status,
			"credentials": map[string]any{
				"configured": len(missing) == 0,
				"missing":    missing,
			},
			"cache": map[string]any{
				"reachable": cacheOK,
			},
			"assistant": map[string]any{
				"configured": d.Config.OpenAIAPIKey != "" && d.Config.OpenAIAssistantID != "",
			},
			"functions": map[string]any{
				"healthy": functionsErr == nil,
				"count":   len(d.Registry.Names()),
			},
		}
		writeJSON(w, http.StatusOK, body)
	}).Methods("GET")

	router.HandleFunc("/functions", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{
			"functions":   d.Registry.Names(),
			"stats":       d.Registry.Stats(),
			"definitions": d.Registry.Definitions(),
		})
	}).Methods("GET")

	cors := handlers.CORS(
		handlers.AllowedOrigins([]string{"*"}),
		handlers.AllowedMethods([]string{"GET", "POST", "OPTIONS"}),
		handlers.AllowedHeaders([]string{"Content-Type", "Authorization", "X-Request-ID", "X-Signature"}),
	)
	recovery := handlers.RecoveryHandler(
		handlers.PrintRecoveryStack(true),
		handlers.RecoveryLogger(slog.NewLogLogger(d.Logger.Handler(), slog.LevelError)),
	)

	return webhook.RequestIDMiddleware(cors(recovery(router)))
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
