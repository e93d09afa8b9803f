package middleware

import (
	"bytes"
	"net/http"
	"net/http/httptest"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/doorman-proxy/doorman/pkg/logger"
)

var _ = Describe("RequestLogger", func() {
	var buf bytes.Buffer

	BeforeEach(func() {
		buf.Reset()
		logger.SetOutput(&buf)
	})

	AfterEach(func() {
		logger.SetOutput(GinkgoWriter)
	})

	It("logs method, path and status after the handler runs", func() {
		chain := NewScope("X-Request-Id")(NewRequestLogger()(
			http.HandlerFunc(func(rw http.ResponseWriter, _ *http.Request) {
				rw.WriteHeader(http.StatusTeapot)
				_, _ = rw.Write([]byte("short and stout"))
			})))

		req := httptest.NewRequest(http.MethodGet, "/reports", nil)
		chain.ServeHTTP(httptest.NewRecorder(), req)

		line := buf.String()
		Expect(line).To(ContainSubstring("GET"))
		Expect(line).To(ContainSubstring("/reports"))
		Expect(line).To(ContainSubstring("418"))
	})
})
