package handlers_test

import (
	"net/http"
	"net/http/httptest"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/rs/zerolog"

	"github.com/opsmirror/echo-go/handlers"
)

var _ = Describe("NewAPIHandler", func() {
	var (
		api http.Handler
		rw  *httptest.ResponseRecorder
	)

	BeforeEach(func() {
		api = handlers.NewAPIHandler(zerolog.Nop())
		rw = httptest.NewRecorder()
	})

	Describe("/healthcheck", func() {
		It("responds 200 OK to GET", func() {
			api.ServeHTTP(rw, httptest.NewRequest("GET", "/healthcheck", nil))

			Expect(rw.Code).To(Equal(http.StatusOK))
			Expect(rw.Body.String()).To(Equal("OK"))
		})

		It("rejects other methods with 405 and an Allow header", func() {
			api.ServeHTTP(rw, httptest.NewRequest("POST", "/healthcheck", nil))

			Expect(rw.Code).To(Equal(http.StatusMethodNotAllowed))
			Expect(rw.Header().Get("Allow")).To(Equal("GET"))
		})
	})

	Describe("/memory-stats", func() {
		It("reports runtime memory statistics as JSON", func() {
			api.ServeHTTP(rw, httptest.NewRequest("GET", "/memory-stats", nil))

			Expect(rw.Code).To(Equal(http.StatusOK))
			Expect(rw.Header().Get("Content-Type")).To(Equal("application/json"))
			Expect(rw.Body.String()).To(ContainSubstring(`"HeapAlloc"`))
		})

		It("rejects other methods with 405 and an Allow header", func() {
			api.ServeHTTP(rw, httptest.NewRequest("PUT", "/memory-stats", nil))

			Expect(rw.Code).To(Equal(http.StatusMethodNotAllowed))
			Expect(rw.Header().Get("Allow")).To(Equal("GET"))
		})
	})

	Describe("/metrics", func() {
		It("serves the Prometheus text exposition format", func() {
			api.ServeHTTP(rw, httptest.NewRequest("GET", "/metrics", nil))

			Expect(rw.Code).To(Equal(http.StatusOK))
			Expect(rw.Body.String()).To(ContainSubstring("go_goroutines"))
		})

		It("exposes the echo collectors", func() {
			measured := handlers.Measure(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusOK)
			}))
			measured.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("GET", "/warm-up", nil))

			api.ServeHTTP(rw, httptest.NewRequest("GET", "/metrics", nil))

			Expect(rw.Body.String()).To(ContainSubstring("echo_requests_total"))
			Expect(rw.Body.String()).To(ContainSubstring("echo_request_duration_seconds"))
			Expect(rw.Body.String()).To(ContainSubstring("echo_request_size_bytes"))
			Expect(rw.Body.String()).To(ContainSubstring("echo_response_size_bytes"))
			Expect(rw.Body.String()).To(ContainSubstring("echo_requests_in_flight"))
		})

		It("never uses the request path as a label", func() {
			api.ServeHTTP(rw, httptest.NewRequest("GET", "/metrics", nil))

			Expect(rw.Body.String()).NotTo(ContainSubstring(`path="`))
		})

		It("rejects other methods with 405 and an Allow header", func() {
			api.ServeHTTP(rw, httptest.NewRequest("DELETE", "/metrics", nil))

			Expect(rw.Code).To(Equal(http.StatusMethodNotAllowed))
			Expect(rw.Header().Get("Allow")).To(Equal("GET"))
		})
	})

	It("responds 404 on unknown paths", func() {
		api.ServeHTTP(rw, httptest.NewRequest("GET", "/unknown", nil))

		Expect(rw.Code).To(Equal(http.StatusNotFound))
	})
})
