package middleware

import (
	"context"
	"net/http"
)

// RequestScope contains information regarding the request that is being
// made. The RequestScope is used to pass information between different
// middlewares within the chain.
type RequestScope struct {
	// RequestID is the request's unique identifier, either taken from the
	// configured request ID header or generated.
	RequestID string
}

type scopeKey struct{}

// GetRequestScope returns the current request scope from the given request.
func GetRequestScope(req *http.Request) *RequestScope {
	scope := req.Context().Value(scopeKey{})
	if scope == nil {
		return nil
	}
	return scope.(*RequestScope)
}

// AddRequestScope adds a RequestScope to a request.
func AddRequestScope(req *http.Request, scope *RequestScope) *http.Request {
	ctx := context.WithValue(req.Context(), scopeKey{}, scope)
	return req.WithContext(ctx)
}
