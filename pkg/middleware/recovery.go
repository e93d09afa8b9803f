package middleware

import (
	"net/http"
	"runtime/debug"

	"github.com/justinas/alice"

	"github.com/doorman-proxy/doorman/pkg/logger"
)

// NewRecovery converts handler panics into a 500 response so a single
// bad request cannot take the process down.
func NewRecovery() alice.Constructor {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(rw http.ResponseWriter, req *http.Request) {
			defer func() {
				if rec := recover(); rec != nil {
					logger.Errorf("panic while serving %s %s: %v\n%s",
						req.Method, req.URL.Path, rec, debug.Stack())
					http.Error(rw, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
				}
			}()
			next.ServeHTTP(rw, req)
		})
	}
}
