package middleware

import (
	"bufio"
	"errors"
	"net"
	"net/http"
)

// responseWriter records the status and body size written through it so
// the request logger can report them after the handler returns.
type responseWriter struct {
	http.ResponseWriter

	status int
	size   int
}

func newResponseWriter(rw http.ResponseWriter) *responseWriter {
	return &responseWriter{ResponseWriter: rw}
}

func (r *responseWriter) Write(b []byte) (int, error) {
	if r.status == 0 {
		// The status will be StatusOK if WriteHeader has not been called
		// yet.
		r.status = http.StatusOK
	}
	size, err := r.ResponseWriter.Write(b)
	r.size += size
	return size, err
}

func (r *responseWriter) WriteHeader(status int) {
	if r.status == 0 {
		r.status = status
	}
	r.ResponseWriter.WriteHeader(status)
}

func (r *responseWriter) Status() int {
	return r.status
}

func (r *responseWriter) Size() int {
	return r.size
}

// Hijack passes through to the wrapped writer where supported.
func (r *responseWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	if hj, ok := r.ResponseWriter.(http.Hijacker); ok {
		return hj.Hijack()
	}
	return nil, nil, errors.New("http.Hijacker is not available on writer")
}

// Flush passes through to the wrapped writer where supported.
func (r *responseWriter) Flush() {
	if fl, ok := r.ResponseWriter.(http.Flusher); ok {
		fl.Flush()
	}
}
