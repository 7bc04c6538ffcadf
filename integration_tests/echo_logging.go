package integration

import (
	"encoding/json"
	"os"
	"strings"

	// revive:disable:dot-imports
	. "github.com/onsi/gomega"
	// revive:enable:dot-imports
)

var (
	tempLogfile *os.File
)

func setupTempLogfile() error {
	file, err := os.CreateTemp("", "echo_log")
	if err != nil {
		return err
	}
	tempLogfile = file
	return nil
}

// resetTempLogfile rewinds the logfile. The server under test inherited this
// file as its stderr, so truncating through the shared descriptor restarts
// its log at the top.
func resetTempLogfile() {
	tempLogfile.Seek(0, 0)
	tempLogfile.Truncate(0)
}

func cleanupTempLogfile() {
	if tempLogfile != nil {
		tempLogfile.Close()
		os.Remove(tempLogfile.Name())
	}
}

type echoLogEntry struct {
	Level   string                 `json:"level"`
	Client  string                 `json:"client"`
	Request map[string]interface{} `json:"request"`
	Message string                 `json:"message"`
}

// logfileContent reads by name rather than through the shared descriptor, so
// the server's write offset is left alone.
func logfileContent(file *os.File) string {
	content, err := os.ReadFile(file.Name())
	Expect(err).To(BeNil())
	return string(content)
}

// lastAccessLogEntry waits for a "request echoed" line to appear in file and
// returns the last one, parsed.
func lastAccessLogEntry(file *os.File) *echoLogEntry {
	var last *echoLogEntry

	Eventually(func() *echoLogEntry {
		for _, line := range strings.Split(logfileContent(file), "\n") {
			if line == "" {
				continue
			}
			var entry echoLogEntry
			if json.Unmarshal([]byte(line), &entry) == nil && entry.Message == "request echoed" {
				last = &entry
			}
		}
		return last
	}).ShouldNot(BeNil(), "No access log line found")

	return last
}
