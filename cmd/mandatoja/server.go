package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"mandatoja/internal/constants"
	"mandatoja/internal/database"
	"mandatoja/internal/models"
	"mandatoja/internal/service"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
)

// Server exposes the operator actions the campaign UI invokes: session
// lifecycle per instance, QR retrieval, and queue-path suppression.
type Server struct {
	router     *mux.Router
	logger     *logrus.Logger
	db         *database.Database
	sessions   *service.SessionController
	dispatcher *service.Dispatcher
	server     *http.Server
	port       int
}

func NewServer(cfg *models.Config, db *database.Database, sessions *service.SessionController, dispatcher *service.Dispatcher, logger *logrus.Logger) *Server {
	s := &Server{
		router:     mux.NewRouter(),
		logger:     logger,
		db:         db,
		sessions:   sessions,
		dispatcher: dispatcher,
		port:       cfg.Server.Port,
	}

	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	s.router.HandleFunc("/health", s.handleHealth()).Methods(http.MethodGet)
	s.router.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)

	sessions := s.router.PathPrefix("/api/instances/{id:[0-9]+}/session").Subrouter()
	sessions.HandleFunc("/connect", s.handleConnect()).Methods(http.MethodPost)
	sessions.HandleFunc("/reconnect", s.handleReconnect()).Methods(http.MethodPost)
	sessions.HandleFunc("/status", s.handleStatus()).Methods(http.MethodGet)
	sessions.HandleFunc("/qr", s.handleFetchQR()).Methods(http.MethodGet)
	sessions.HandleFunc("/qr", s.handleCloseQR()).Methods(http.MethodDelete)

	s.router.HandleFunc("/api/messages/{id:[0-9]+}/suppress", s.handleSuppress()).Methods(http.MethodPost)
}

func (s *Server) Start() error {
	s.server = &http.Server{
		Addr:         fmt.Sprintf(":%d", s.port),
		Handler:      s.router,
		ReadTimeout:  constants.DefaultServerReadTimeoutSec * time.Second,
		WriteTimeout: constants.DefaultServerWriteTimeoutSec * time.Second,
		IdleTimeout:  constants.DefaultServerIdleTimeoutSec * time.Second,
	}

	s.logger.Infof("Starting server on port %d", s.port)
	return s.server.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

func (s *Server) handleHealth() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	}
}

func (s *Server) handleConnect() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		instance, ok := s.instanceFromRequest(w, r)
		if !ok {
			return
		}

		if err := s.sessions.Connect(r.Context(), *instance); err != nil {
			s.logger.WithError(err).WithField("instanceId", instance.ID).Error("Connect failed")
			s.writeError(w, http.StatusBadGateway, err)
			return
		}
		s.writeJSON(w, http.StatusAccepted, map[string]string{"status": "STARTING"})
	}
}

func (s *Server) handleReconnect() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		instance, ok := s.instanceFromRequest(w, r)
		if !ok {
			return
		}

		if err := s.sessions.Reconnect(r.Context(), *instance); err != nil {
			s.logger.WithError(err).WithField("instanceId", instance.ID).Error("Reconnect failed")
			s.writeError(w, http.StatusBadGateway, err)
			return
		}
		s.writeJSON(w, http.StatusAccepted, map[string]string{"status": "STARTING"})
	}
}

func (s *Server) handleStatus() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		instance, ok := s.instanceFromRequest(w, r)
		if !ok {
			return
		}

		status, err := s.sessions.Status(r.Context(), *instance)
		if err != nil {
			s.writeError(w, http.StatusBadGateway, err)
			return
		}
		s.writeJSON(w, http.StatusOK, map[string]string{"status": string(status)})
	}
}

func (s *Server) handleFetchQR() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		instance, ok := s.instanceFromRequest(w, r)
		if !ok {
			return
		}

		qr, err := s.sessions.FetchQR(r.Context(), *instance)
		if err != nil {
			if errors.Is(err, service.ErrSessionNotAwaitingScan) {
				s.writeError(w, http.StatusConflict, err)
				return
			}
			s.writeError(w, http.StatusBadGateway, err)
			return
		}
		s.writeJSON(w, http.StatusOK, map[string]string{"qr": qr})
	}
}

func (s *Server) handleCloseQR() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := s.idFromRequest(w, r)
		if !ok {
			return
		}
		s.sessions.CloseQRFlow(id)
		w.WriteHeader(http.StatusNoContent)
	}
}

func (s *Server) handleSuppress() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := s.idFromRequest(w, r)
		if !ok {
			return
		}
		s.dispatcher.Suppress(id)
		w.WriteHeader(http.StatusNoContent)
	}
}

func (s *Server) idFromRequest(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, fmt.Errorf("invalid id"))
		return 0, false
	}
	return id, true
}

func (s *Server) instanceFromRequest(w http.ResponseWriter, r *http.Request) (*models.ProviderInstance, bool) {
	id, ok := s.idFromRequest(w, r)
	if !ok {
		return nil, false
	}

	instance, err := s.db.GetInstance(r.Context(), id)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err)
		return nil, false
	}
	if instance == nil {
		s.writeError(w, http.StatusNotFound, fmt.Errorf("instance %d not found", id))
		return nil, false
	}
	return instance, true
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.WithError(err).Error("Failed to encode response")
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, err error) {
	s.writeJSON(w, status, map[string]string{"error": err.Error()})
}
