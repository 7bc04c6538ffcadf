package handlers

import (
	"regexp"

	"github.com/rs/zerolog"
)

var patternListSeparator = regexp.MustCompile(`[,;] ?`)

// ParseUnloggedPatterns parses a comma- or semicolon-separated list of
// request path patterns that should not be access-logged, e.g.
//
//	some/endpoint; another/endpoint\?with=some-param
//
// Patterns that fail to compile are skipped with a warning, so one bad entry
// cannot stop the server or disable the remaining filters.
func ParseUnloggedPatterns(list string, logger zerolog.Logger) []*regexp.Regexp {
	if list == "" {
		return nil
	}

	var patterns []*regexp.Regexp
	for _, raw := range patternListSeparator.Split(list, -1) {
		if raw == "" {
			continue
		}
		pattern, err := regexp.Compile(raw)
		if err != nil {
			logger.Warn().Str("pattern", raw).Err(err).Msg("declining to add bad filter pattern")
			continue
		}
		patterns = append(patterns, pattern)
	}
	return patterns
}
