package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	apperrors "zapdispatch/internal/errors"
	"zapdispatch/internal/models"
	"zapdispatch/internal/service"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"
)

type Server struct {
	router        *mux.Router
	logger        *logrus.Logger
	dispatch      *service.DispatchService
	media         *service.MediaService
	apiKey        string
	watchInterval time.Duration
	server        *http.Server
}

func NewServer(dispatch *service.DispatchService, media *service.MediaService, apiKey string, watchInterval time.Duration, logger *logrus.Logger) *Server {
	s := &Server{
		router:        mux.NewRouter(),
		logger:        logger,
		dispatch:      dispatch,
		media:         media,
		apiKey:        apiKey,
		watchInterval: watchInterval,
	}

	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	s.router.HandleFunc("/health", s.handleHealth()).Methods(http.MethodGet)

	api := s.router.PathPrefix("/api").Subrouter()
	api.Use(requestLogging(s.logger))
	api.Use(apiKeyAuth(s.apiKey))

	api.HandleFunc("/dispatch", s.handleCreateDispatch()).Methods(http.MethodPost)
	api.HandleFunc("/dispatch/{id:[0-9]+}/resume", s.handleResume()).Methods(http.MethodPost)
	api.HandleFunc("/dispatch/{id:[0-9]+}/status", s.handleStatus()).Methods(http.MethodGet)
	api.HandleFunc("/dispatch/{id:[0-9]+}/watch", s.handleWatch()).Methods(http.MethodGet)
	api.HandleFunc("/media/send", s.handleMediaSend()).Methods(http.MethodPost)
}

func (s *Server) Start(port, readTimeoutSec, writeTimeoutSec, idleTimeoutSec int) error {
	s.server = &http.Server{
		Addr:         fmt.Sprintf(":%d", port),
		Handler:      s.router,
		ReadTimeout:  time.Duration(readTimeoutSec) * time.Second,
		WriteTimeout: time.Duration(writeTimeoutSec) * time.Second,
		IdleTimeout:  time.Duration(idleTimeoutSec) * time.Second,
	}

	s.logger.Infof("Starting server on port %d", port)
	return s.server.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

func (s *Server) handleHealth() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	}
}

func (s *Server) handleCreateDispatch() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req models.DispatchRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			s.writeError(w, apperrors.Wrap(err, apperrors.ErrCodeBadRequest, "invalid request body"))
			return
		}

		resp, err := s.dispatch.CreateDispatch(r.Context(), &req)
		if err != nil {
			s.writeError(w, err)
			return
		}

		s.writeJSON(w, http.StatusCreated, resp)
	}
}

func (s *Server) handleResume() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		batchID, err := batchIDFromRequest(r)
		if err != nil {
			s.writeError(w, err)
			return
		}

		// The resume body optionally carries an ignoreWindow flag; it is
		// decoded for shape compatibility and deliberately not applied.
		var req models.ResumeRequest
		_ = json.NewDecoder(r.Body).Decode(&req)

		outcome, err := s.dispatch.ResumeDispatch(r.Context(), batchID)
		if err != nil {
			s.writeError(w, err)
			return
		}

		s.writeJSON(w, http.StatusOK, outcome)
	}
}

func (s *Server) handleStatus() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		batchID, err := batchIDFromRequest(r)
		if err != nil {
			s.writeError(w, err)
			return
		}

		report, err := s.dispatch.Status(r.Context(), batchID)
		if err != nil {
			s.writeError(w, err)
			return
		}

		s.writeJSON(w, http.StatusOK, report)
	}
}

// handleWatch upgrades to a websocket and pushes the status aggregate until
// the batch drains or the client disconnects.
func (s *Server) handleWatch() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		batchID, err := batchIDFromRequest(r)
		if err != nil {
			s.writeError(w, err)
			return
		}

		conn, err := websocket.Accept(w, r, nil)
		if err != nil {
			s.logger.WithError(err).Warn("Failed to accept watch connection")
			return
		}
		defer conn.Close(websocket.StatusNormalClosure, "done")

		ctx := r.Context()
		ticker := time.NewTicker(s.watchInterval)
		defer ticker.Stop()

		for {
			report, err := s.dispatch.Status(ctx, batchID)
			if err != nil {
				_ = conn.Close(websocket.StatusInternalError, "status unavailable")
				return
			}

			if err := wsjson.Write(ctx, conn, report); err != nil {
				return
			}

			if !report.InProgress {
				return
			}

			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			}
		}
	}
}

func (s *Server) handleMediaSend() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req models.MediaSendRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			s.writeError(w, apperrors.Wrap(err, apperrors.ErrCodeBadRequest, "invalid request body"))
			return
		}

		if err := s.media.Send(r.Context(), &req); err != nil {
			s.writeError(w, err)
			return
		}

		s.writeJSON(w, http.StatusOK, map[string]string{"status": "sent"})
	}
}

func batchIDFromRequest(r *http.Request) (int64, error) {
	raw := mux.Vars(r)["id"]
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, apperrors.Wrap(err, apperrors.ErrCodeBadRequest, "invalid batch id")
	}
	return id, nil
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		s.logger.WithError(err).Error("Failed to encode response")
	}
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	code := apperrors.GetCode(err)

	status := http.StatusInternalServerError
	switch {
	case apperrors.IsValidation(err):
		status = http.StatusBadRequest
	case code == apperrors.ErrCodeNotFound:
		status = http.StatusNotFound
	case code == apperrors.ErrCodeTransport:
		status = http.StatusBadGateway
	}

	if status == http.StatusInternalServerError {
		s.logger.WithError(err).Error("Request failed")
	}

	s.writeJSON(w, status, models.ErrorResponse{
		Error: err.Error(),
		Code:  string(code),
	})
}
