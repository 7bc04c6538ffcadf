package integration

import (
	"encoding/json"
	"io"
	"net/http"
	"strconv"
	"strings"

	// revive:disable:dot-imports
	. "github.com/onsi/gomega"
	// revive:enable:dot-imports
)

func echoRequest(path string) *http.Response {
	resp, err := http.Get(echoURL(echoPort, path))
	Expect(err).To(BeNil())
	return resp
}

func echoGet(port int, path string) (*http.Response, error) {
	return http.Get(echoURL(port, path))
}

func metricsRequest(path string) *http.Response {
	resp, err := http.Get(echoURL(metricsPort, path))
	Expect(err).To(BeNil())
	return resp
}

func newRequest(method, url, body string) *http.Request {
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req, err := http.NewRequest(method, url, reader)
	Expect(err).To(BeNil())
	return req
}

func doRequest(req *http.Request) *http.Response {
	resp, err := http.DefaultClient.Do(req)
	Expect(err).To(BeNil())
	return resp
}

func readBody(resp *http.Response) string {
	bytes, err := io.ReadAll(resp.Body)
	Expect(err).To(BeNil())
	return string(bytes)
}

func readJSONBody(resp *http.Response) map[string]interface{} {
	var doc map[string]interface{}
	err := json.Unmarshal([]byte(readBody(resp)), &doc)
	Expect(err).To(BeNil())
	return doc
}

// scrapeCounterTotal sums every sample of a counter family in the text
// exposition served on port, so label splits don't matter to the caller.
func scrapeCounterTotal(port int, name string) float64 {
	resp, err := http.Get(echoURL(port, "/metrics"))
	Expect(err).To(BeNil())
	defer resp.Body.Close()

	total := 0.0
	for _, line := range strings.Split(readBody(resp), "\n") {
		if !strings.HasPrefix(line, name) {
			continue
		}
		fields := strings.Fields(line)
		value, err := strconv.ParseFloat(fields[len(fields)-1], 64)
		Expect(err).To(BeNil())
		total += value
	}
	return total
}
