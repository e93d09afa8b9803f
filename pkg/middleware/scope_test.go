package middleware

import (
	"net/http"
	"net/http/httptest"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	middlewareapi "github.com/doorman-proxy/doorman/pkg/apis/middleware"
)

var _ = Describe("Scope", func() {
	const idHeader = "X-Request-Id"

	var capturedScope *middlewareapi.RequestScope

	handler := func() http.Handler {
		return NewScope(idHeader)(http.HandlerFunc(func(rw http.ResponseWriter, req *http.Request) {
			capturedScope = middlewareapi.GetRequestScope(req)
			rw.WriteHeader(http.StatusOK)
		}))
	}

	BeforeEach(func() {
		capturedScope = nil
	})

	It("generates a request ID when none is supplied", func() {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/verify", nil)
		handler().ServeHTTP(httptest.NewRecorder(), req)

		Expect(capturedScope).NotTo(BeNil())
		Expect(capturedScope.RequestID).NotTo(BeEmpty())
	})

	It("prefers the configured request ID header", func() {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/verify", nil)
		req.Header.Set(idHeader, "rid-1234")
		handler().ServeHTTP(httptest.NewRecorder(), req)

		Expect(capturedScope).NotTo(BeNil())
		Expect(capturedScope.RequestID).To(Equal("rid-1234"))
	})

	It("issues distinct IDs to distinct requests", func() {
		ids := map[string]struct{}{}
		for i := 0; i < 5; i++ {
			req := httptest.NewRequest(http.MethodGet, "/ping", nil)
			handler().ServeHTTP(httptest.NewRecorder(), req)
			ids[capturedScope.RequestID] = struct{}{}
		}
		Expect(ids).To(HaveLen(5))
	})
})

var _ = Describe("Recovery", func() {
	It("maps a handler panic to a 500", func() {
		handler := NewRecovery()(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
			panic("boom")
		}))

		rw := httptest.NewRecorder()
		Expect(func() {
			handler.ServeHTTP(rw, httptest.NewRequest(http.MethodGet, "/", nil))
		}).NotTo(Panic())
		Expect(rw.Code).To(Equal(http.StatusInternalServerError))
	})

	It("leaves healthy handlers untouched", func() {
		handler := NewRecovery()(http.HandlerFunc(func(rw http.ResponseWriter, _ *http.Request) {
			rw.WriteHeader(http.StatusNoContent)
		}))

		rw := httptest.NewRecorder()
		handler.ServeHTTP(rw, httptest.NewRequest(http.MethodGet, "/", nil))
		Expect(rw.Code).To(Equal(http.StatusNoContent))
	})
})
