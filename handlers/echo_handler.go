package handlers

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"regexp"

	"github.com/rs/zerolog"

	"github.com/opsmirror/echo-go/echo"
)

// EchoHandler answers every request with a JSON description of that request.
// It never rejects input: whatever arrives is reflected back with 200 OK.
type EchoHandler struct {
	logger   zerolog.Logger
	unlogged []*regexp.Regexp
}

// NewEchoHandler returns an EchoHandler whose access log lines go to logger.
// Requests whose path matches one of the unlogged patterns are served but not
// logged (see ParseUnloggedPatterns).
func NewEchoHandler(logger zerolog.Logger, unlogged []*regexp.Regexp) *EchoHandler {
	return &EchoHandler{logger: logger, unlogged: unlogged}
}

func (h *EchoHandler) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	defer func() {
		if r := recover(); r != nil {
			handlerPanicCountMetric.Inc()
			h.logger.Err(fmt.Errorf("%v", r)).Msg("recovered from panic in ServeHTTP")
			w.WriteHeader(http.StatusInternalServerError)
		}
	}()

	body, err := io.ReadAll(req.Body)
	if err != nil {
		// Reflect whatever part of the body did arrive rather than failing
		// the request.
		h.logger.Warn().Err(err).Msg("failed to read request body")
	}
	// Measured from the bytes actually read; Content-Length is absent for
	// chunked requests.
	requestSizeBytesMetric.Observe(float64(len(body)))

	doc := echo.NewDocument(req.Method, req.URL.Path, req.URL.Query(), req.Header, body)
	payload, err := json.Marshal(doc)
	if err != nil {
		h.logger.Error().Err(err).Msg("failed to marshal echo document")
		payload = []byte("null")
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(payload); err != nil {
		h.logger.Warn().Err(err).Msg("failed to write response")
	}

	if !h.unloggedPath(req.URL.Path) {
		h.logger.Info().
			Str("client", req.RemoteAddr).
			RawJSON("request", payload).
			Msg("request echoed")
	}
}

// unloggedPath reports whether access logging is suppressed for path.
func (h *EchoHandler) unloggedPath(path string) bool {
	for _, pattern := range h.unlogged {
		if pattern.MatchString(path) {
			return true
		}
	}
	return false
}
