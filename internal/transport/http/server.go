package httptransport

import (
	"net/http"
	"time"

	"go.uber.org/zap"
)

// ServerConfig contains tunables for the HTTP server.
type ServerConfig struct {
	Address      string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

// NewServer creates *http.Server with provided handler. Server-level errors
// (TLS handshakes, malformed requests) are routed to logger.
func NewServer(cfg ServerConfig, handler http.Handler, logger *zap.Logger) *http.Server {
	srv := &http.Server{
		Addr:         cfg.Address,
		Handler:      handler,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}
	if logger != nil {
		if errLog, err := zap.NewStdLogAt(logger.Named("http"), zap.WarnLevel); err == nil {
			srv.ErrorLog = errLog
		}
	}
	return srv
}
