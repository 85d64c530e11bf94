package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"go.uber.org/zap"

	"github.com/oicur0t/ratelog/internal/dispatch"
	"github.com/oicur0t/ratelog/internal/logbuffer"
	"github.com/oicur0t/ratelog/pkg/models"
)

// Handler handles HTTP requests
type Handler struct {
	buffer *logbuffer.Buffer
	router *dispatch.Router
	parser *CommandParser
	logger *zap.Logger
}

// NewHandler creates a new HTTP handler
func NewHandler(buffer *logbuffer.Buffer, router *dispatch.Router, parser *CommandParser, logger *zap.Logger) *Handler {
	return &Handler{
		buffer: buffer,
		router: router,
		parser: parser,
		logger: logger,
	}
}

// Command runs one command line against the router
func (h *Handler) Command(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	defer r.Body.Close()

	tokens, err := h.parser.Parse(w, r)
	if err != nil {
		status := http.StatusBadRequest
		if errors.Is(err, errBodyTooLarge) {
			status = http.StatusRequestEntityTooLarge
		}
		writeJSON(w, status, models.CommandResponse{Error: err.Error()})
		return
	}

	out, err := h.router.DispatchTokens(tokens)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, dispatch.ErrUnknownCommand) {
			status = http.StatusNotFound
		} else if errors.Is(err, dispatch.ErrEmptyCommand) {
			status = http.StatusBadRequest
		}
		writeJSON(w, status, models.CommandResponse{Command: out.Command, Error: err.Error()})
		return
	}

	writeJSON(w, http.StatusOK, models.CommandResponse{
		Command: out.Command,
		OK:      out.OK,
		Lines:   out.Lines,
	})
}

// IngestLogs feeds a batch of lines into the buffer under the batch module
func (h *Handler) IngestLogs(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	defer r.Body.Close()

	// Decode the request body
	var batch models.LogBatch
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, h.parser.maxBytes)).Decode(&batch); err != nil {
		h.logger.Debug("Failed to decode ingest request", zap.Error(err))
		http.Error(w, fmt.Sprintf("Invalid JSON: %v", err), http.StatusBadRequest)
		return
	}

	if batch.Module == "" {
		http.Error(w, "module is required", http.StatusBadRequest)
		return
	}

	if len(batch.Lines) == 0 {
		http.Error(w, "lines cannot be empty", http.StatusBadRequest)
		return
	}

	for _, line := range batch.Lines {
		h.buffer.Sketch(batch.Module, "%s", line)
	}

	h.logger.Debug("Received batch",
		zap.String("module", batch.Module),
		zap.Int("lines", len(batch.Lines)))

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":   "success",
		"received": len(batch.Lines),
	})
}

// Health reports liveness and buffer counters
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, models.HealthResponse{
		Status:   "healthy",
		Commands: h.router.Commands(),
		Buffer:   h.buffer.Stats(),
	})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
