package middleware

import (
	"net/http"

	"github.com/justinas/alice"

	middlewareapi "github.com/doorman-proxy/doorman/pkg/apis/middleware"
	"github.com/doorman-proxy/doorman/pkg/clock"
	"github.com/doorman-proxy/doorman/pkg/logger"
)

// NewRequestLogger writes one request-log line per request after the
// handler completes.
func NewRequestLogger() alice.Constructor {
	return requestLogger
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(rw http.ResponseWriter, req *http.Request) {
		start := clock.Now()
		recorder := newResponseWriter(rw)

		next.ServeHTTP(recorder, req)

		requestID := ""
		if scope := middlewareapi.GetRequestScope(req); scope != nil {
			requestID = scope.RequestID
		}
		logger.PrintReq(requestID, req, start, recorder.Status(), recorder.Size())
	})
}
