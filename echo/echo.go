// Package echo turns an incoming HTTP request into the JSON document that is
// sent back to the client. The transformation is pure: the document is a
// deterministic function of the request, it touches no shared state, and no
// input can make it fail.
package echo

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"unicode/utf8"
)

// Document is the response body for every echoed request. Struct field order
// fixes the order of the top-level JSON keys and map keys are marshalled
// sorted, so the same request always yields byte-identical output.
type Document struct {
	Method  string            `json:"method"`
	Path    string            `json:"path"`
	Headers map[string]string `json:"headers"`
	Params  map[string]string `json:"params"`
	Body    interface{}       `json:"body"`
}

// NewDocument builds the Document describing a single request. Header names
// are folded to lower case and repeated headers are joined with ", " in
// arrival order. Query parameters arrive percent-decoded; when a key repeats,
// the last value wins. The path always carries a leading slash.
func NewDocument(method, path string, params url.Values, headers http.Header, body []byte) Document {
	doc := Document{
		Method:  method,
		Path:    sanitize(path),
		Headers: flattenHeaders(headers),
		Params:  flattenParams(params),
		Body:    DecodeBody(body),
	}

	if !strings.HasPrefix(doc.Path, "/") {
		doc.Path = "/" + doc.Path
	}

	return doc
}

// DecodeBody chooses the JSON value echoed back for a request body. An empty
// body is null. Anything that parses as a single JSON value is embedded
// structurally, whatever Content-Type the client declared, so a JSON payload
// labelled text/plain still comes back with its structure intact rather than
// as an escaped string. Everything else becomes a JSON string, with invalid
// UTF-8 runs replaced by U+FFFD.
func DecodeBody(body []byte) interface{} {
	if len(body) == 0 {
		return nil
	}
	if !utf8.Valid(body) {
		return sanitize(string(body))
	}
	if v, ok := parseJSON(body); ok {
		return v
	}
	return string(body)
}

// parseJSON accepts exactly one JSON value spanning the whole input. Numbers
// decode as json.Number so that literals survive re-encoding undisturbed.
func parseJSON(body []byte) (interface{}, bool) {
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()

	var v interface{}
	if err := dec.Decode(&v); err != nil {
		return nil, false
	}
	if _, err := dec.Token(); err != io.EOF {
		return nil, false
	}
	return v, true
}

// flattenHeaders folds header names to lower case and joins the values of
// repeated headers with ", ". Names are visited in sorted order so that two
// distinct names folding to the same key still merge deterministically.
func flattenHeaders(headers http.Header) map[string]string {
	flat := make(map[string]string, len(headers))

	names := make([]string, 0, len(headers))
	for name := range headers {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		joined := sanitize(strings.Join(headers[name], ", "))
		key := strings.ToLower(name)
		if prev, ok := flat[key]; ok {
			joined = prev + ", " + joined
		}
		flat[key] = joined
	}

	return flat
}

// flattenParams keeps the last value of each repeated query key.
func flattenParams(params url.Values) map[string]string {
	flat := make(map[string]string, len(params))

	keys := make([]string, 0, len(params))
	for key := range params {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	for _, key := range keys {
		value := ""
		if vs := params[key]; len(vs) > 0 {
			value = vs[len(vs)-1]
		}
		flat[sanitize(key)] = sanitize(value)
	}

	return flat
}

// sanitize replaces runs of invalid UTF-8 with the replacement character so
// the document never depends on how a particular JSON encoder escapes bad
// input.
func sanitize(s string) string {
	if utf8.ValidString(s) {
		return s
	}
	return strings.ToValidUTF8(s, "\uFFFD")
}
