package integration

import (
	"fmt"
	"os"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("Serving over TLS", func() {
	const (
		tlsEchoPort    = 3369
		tlsMetricsPort = 3368
	)

	var tlsLogfile *os.File

	BeforeEach(func() {
		var err error
		tlsLogfile, err = os.CreateTemp("", "echo_tls_log")
		Expect(err).NotTo(HaveOccurred())

		certFile, keyFile := writeTestCertPair(GinkgoT().TempDir())
		err = startEchoServer(tlsEchoPort, tlsMetricsPort, tlsLogfile,
			"ECHO_TLS_CERT="+certFile,
			"ECHO_TLS_KEY="+keyFile,
			"ECHO_METRICS_USE_TLS=true")
		Expect(err).NotTo(HaveOccurred())
	})
	AfterEach(func() {
		stopEchoServer(tlsEchoPort)
		tlsLogfile.Close()
		os.Remove(tlsLogfile.Name())
	})

	It("echoes over HTTPS", func() {
		resp, err := insecureTLSClient().Get(fmt.Sprintf("https://127.0.0.1:%d/secure?a=1", tlsEchoPort))
		Expect(err).NotTo(HaveOccurred())

		Expect(resp.StatusCode).To(Equal(200))
		doc := readJSONBody(resp)
		Expect(doc).To(HaveKeyWithValue("method", "GET"))
		Expect(doc).To(HaveKeyWithValue("path", "/secure"))
	})

	It("serves metrics over HTTPS when asked to", func() {
		client := insecureTLSClient()

		resp, err := client.Get(fmt.Sprintf("https://127.0.0.1:%d/warm", tlsEchoPort))
		Expect(err).NotTo(HaveOccurred())
		resp.Body.Close()

		resp, err = client.Get(fmt.Sprintf("https://127.0.0.1:%d/metrics", tlsMetricsPort))
		Expect(err).NotTo(HaveOccurred())
		Expect(resp.StatusCode).To(Equal(200))
		Expect(readBody(resp)).To(ContainSubstring("echo_requests_total"))
	})

	It("refuses plain HTTP on the TLS port", func() {
		resp, err := echoGet(tlsEchoPort, "/plain")
		Expect(err).NotTo(HaveOccurred())

		Expect(resp.StatusCode).To(Equal(400))
		Expect(readBody(resp)).To(ContainSubstring("HTTPS"))
	})
})
