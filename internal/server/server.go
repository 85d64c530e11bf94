package server

import (
	"net/http"

	"go.uber.org/zap"
)

// Route paths served by NewMux
const (
	commandPath = "/v1/commands"
	ingestPath  = "/v1/logs/ingest"
	healthPath  = "/v1/health"
)

// NewMux routes the handler's endpoints behind the middleware chain.
// With requireClientCert set, every request must carry a verified client certificate.
func NewMux(handler *Handler, logger *zap.Logger, requireClientCert bool) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc(commandPath, handler.Command)
	mux.HandleFunc(ingestPath, handler.IngestLogs)
	mux.HandleFunc(healthPath, handler.Health)

	mws := []Middleware{LoggingMiddleware(logger), RecoveryMiddleware(logger)}
	if requireClientCert {
		mws = append(mws, MTLSMiddleware(logger))
	}

	return Chain(mux, mws...)
}
