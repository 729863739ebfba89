package httpserver

import (
	"net/http"
	"time"
)

// New builds an HTTP server with the timeouts used by every listener in this project.
// writeTimeout should exceed the per-request handler timeout so the timeout
// middleware gets to write its own response.
func New(addr string, handler http.Handler, writeTimeout time.Duration) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      writeTimeout + 5*time.Second,
		IdleTimeout:       60 * time.Second,
	}
}
