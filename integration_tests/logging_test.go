package integration

import (
	"os"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("Request logging", func() {

	BeforeEach(func() {
		resetTempLogfile()
	})

	It("logs each echoed request with the client address", func() {
		resp := echoRequest("/logged/path?q=1")
		resp.Body.Close()

		entry := lastAccessLogEntry(tempLogfile)
		Expect(entry.Level).To(Equal("info"))
		Expect(entry.Client).To(ContainSubstring("127.0.0.1:"))
		Expect(entry.Request).To(HaveKeyWithValue("path", "/logged/path"))
		Expect(entry.Request).To(HaveKeyWithValue("method", "GET"))
	})

	It("keeps the client address out of the response document", func() {
		doc := readJSONBody(echoRequest("/no-client-key"))

		Expect(doc).NotTo(HaveKey("client"))
	})

	Describe("with ECHO_SKIP_LOGGING_FOR set", func() {
		const (
			quietEchoPort    = 3269
			quietMetricsPort = 3268
		)

		var quietLogfile *os.File

		BeforeEach(func() {
			var err error
			quietLogfile, err = os.CreateTemp("", "echo_quiet_log")
			Expect(err).NotTo(HaveOccurred())

			err = startEchoServer(quietEchoPort, quietMetricsPort, quietLogfile,
				"ECHO_SKIP_LOGGING_FOR=quiet/.*; probe")
			Expect(err).NotTo(HaveOccurred())
		})
		AfterEach(func() {
			stopEchoServer(quietEchoPort)
			quietLogfile.Close()
			os.Remove(quietLogfile.Name())
		})

		It("serves but does not log matching paths", func() {
			resp, err := echoGet(quietEchoPort, "/quiet/zone")
			Expect(err).To(BeNil())
			Expect(resp.StatusCode).To(Equal(200))

			resp, err = echoGet(quietEchoPort, "/probe-endpoint")
			Expect(err).To(BeNil())
			Expect(resp.StatusCode).To(Equal(200))

			Consistently(func() string {
				return logfileContent(quietLogfile)
			}).ShouldNot(ContainSubstring("request echoed"))
		})

		It("still logs requests that match no pattern", func() {
			resp, err := echoGet(quietEchoPort, "/loud/zone")
			Expect(err).To(BeNil())
			Expect(resp.StatusCode).To(Equal(200))

			entry := lastAccessLogEntry(quietLogfile)
			Expect(entry.Request).To(HaveKeyWithValue("path", "/loud/zone"))
		})

		It("still counts unlogged requests in the metrics", func() {
			before := scrapeCounterTotal(quietMetricsPort, "echo_requests_total")

			resp, err := echoGet(quietEchoPort, "/quiet/counted")
			Expect(err).To(BeNil())
			resp.Body.Close()

			Eventually(func() float64 {
				return scrapeCounterTotal(quietMetricsPort, "echo_requests_total") - before
			}).Should(Equal(1.0))
		})
	})

	Describe("with a bad filter pattern", func() {
		const (
			badEchoPort    = 3279
			badMetricsPort = 3278
		)

		var badLogfile *os.File

		BeforeEach(func() {
			var err error
			badLogfile, err = os.CreateTemp("", "echo_bad_filter_log")
			Expect(err).NotTo(HaveOccurred())

			err = startEchoServer(badEchoPort, badMetricsPort, badLogfile,
				"ECHO_SKIP_LOGGING_FOR=valid-pattern, [broken")
			Expect(err).NotTo(HaveOccurred())
		})
		AfterEach(func() {
			stopEchoServer(badEchoPort)
			badLogfile.Close()
			os.Remove(badLogfile.Name())
		})

		It("starts anyway and warns about the pattern it declined", func() {
			resp, err := echoGet(badEchoPort, "/works-fine")
			Expect(err).To(BeNil())
			Expect(resp.StatusCode).To(Equal(200))

			Eventually(func() string {
				return logfileContent(badLogfile)
			}).Should(ContainSubstring("declining to add bad filter pattern"))
		})
	})
})
