package main

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	atat "github.com/BlackbirdHQ/atat-go"
)

// Server exposes the running Client over HTTP so operators or other
// processes can issue AT commands without a serial connection of their
// own.
type Server struct {
	Logger *slog.Logger
	Client *atat.Client
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /command", s.handleCommand)
	mux.ServeHTTP(w, r)
}

type commandRequest struct {
	Text          string `json:"text"`
	TimeoutMillis int    `json:"timeout_ms"`
}

type commandResponse struct {
	Body string `json:"body,omitempty"`
	Error string `json:"error,omitempty"`
}

func (s *Server) handleCommand(w http.ResponseWriter, r *http.Request) {
	var req commandRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeJSON(w, http.StatusBadRequest, commandResponse{Error: err.Error()})
		return
	}
	if req.Text == "" {
		s.writeJSON(w, http.StatusBadRequest, commandResponse{Error: "text is required"})
		return
	}

	timeout := time.Duration(req.TimeoutMillis) * time.Millisecond
	body, err := s.Client.SendCommand(r.Context(), atat.Raw(req.Text, timeout))
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, atat.ErrTimeout) {
			status = http.StatusGatewayTimeout
		} else if errors.Is(err, atat.ErrWouldBlock) {
			status = http.StatusConflict
		}
		s.Logger.Error("command failed", "text", req.Text, "error", err)
		s.writeJSON(w, status, commandResponse{Error: err.Error()})
		return
	}

	s.Logger.Info("command succeeded", "text", req.Text, "response_bytes", len(body))
	s.writeJSON(w, http.StatusOK, commandResponse{Body: string(body)})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
