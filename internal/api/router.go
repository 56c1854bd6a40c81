package api

import (
	"log/slog"
	"net/http"

	"github.com/gorilla/mux"
)

// NewRouter registers every route on a fresh mux router.
func NewRouter(h *Handlers, logger *slog.Logger) *mux.Router {
	if logger == nil {
		logger = slog.Default()
	}
	router := mux.NewRouter()
	router.Use(recovery(logger), requestLogger(logger.With("component", "http")))

	router.HandleFunc("/health", h.Health).Methods(http.MethodGet)

	router.HandleFunc("/meetings", h.ListMeetings).Methods(http.MethodGet)
	router.HandleFunc("/meetings/{id:[0-9]+}", h.GetMeeting).Methods(http.MethodGet)
	router.HandleFunc("/meetings/{id:[0-9]+}/run", h.RunMeeting).Methods(http.MethodPost)
	router.HandleFunc("/meetings/{id:[0-9]+}/feedback", h.SubmitFeedback).Methods(http.MethodPost)

	router.HandleFunc("/steering", h.GetSteering).Methods(http.MethodGet)
	router.HandleFunc("/steering", h.UpdateSteering).Methods(http.MethodPut)
	router.HandleFunc("/steering/versions", h.SteeringVersions).Methods(http.MethodGet)

	router.HandleFunc("/trigger-poll", h.TriggerPoll).Methods(http.MethodPost)

	return router
}
