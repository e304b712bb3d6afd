package validators

import (
	"net/http"
	"strconv"
	"strings"
)

// QueryString returns the trimmed query parameter or the fallback.
func QueryString(r *http.Request, key, fallback string) string {
	value := strings.TrimSpace(r.URL.Query().Get(key))
	if value == "" {
		return fallback
	}
	return value
}

// QueryBool parses a boolean query parameter; anything unparseable yields the
// fallback.
func QueryBool(r *http.Request, key string, fallback bool) bool {
	value := strings.TrimSpace(r.URL.Query().Get(key))
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		return fallback
	}
	return parsed
}

// QueryInt parses an integer query parameter; anything unparseable yields the
// fallback.
func QueryInt(r *http.Request, key string, fallback int) int {
	value := strings.TrimSpace(r.URL.Query().Get(key))
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}
