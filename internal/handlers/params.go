package handlers

import (
	"net/http"
	"strconv"
	"strings"

	"doulitsa/internal/apperr"
)

// getParam returns a path or query parameter value regardless of whether
// the router stores it with a leading colon or not. It also supports the
// standard net/http PathValue API available in recent Go versions.
func getParam(r *http.Request, name string) string {
	if r == nil {
		return ""
	}

	if val := r.URL.Query().Get(":" + name); val != "" {
		return val
	}

	if val := r.URL.Query().Get(name); val != "" {
		return val
	}

	return r.PathValue(name)
}

// idParam parses a positive numeric path parameter and writes a 400 when it
// is missing or malformed.
func idParam(w http.ResponseWriter, r *http.Request, name string) (int64, bool) {
	id, err := strconv.ParseInt(getParam(r, name), 10, 64)
	if err != nil || id <= 0 {
		writeError(w, r, apperr.BadRequest("Μη έγκυρο αναγνωριστικό"))
		return 0, false
	}
	return id, true
}

func queryInt(r *http.Request, name string) int {
	n, _ := strconv.Atoi(r.URL.Query().Get(name))
	return n
}

func queryInt64(r *http.Request, name string) int64 {
	n, _ := strconv.ParseInt(r.URL.Query().Get(name), 10, 64)
	return n
}

func queryFloat(r *http.Request, name string) float64 {
	f, _ := strconv.ParseFloat(r.URL.Query().Get(name), 64)
	return f
}

// queryBool returns nil when the parameter is absent or not a boolean.
func queryBool(r *http.Request, name string) *bool {
	b, err := strconv.ParseBool(r.URL.Query().Get(name))
	if err != nil {
		return nil
	}
	return &b
}

func queryString(r *http.Request, name string) string {
	return strings.TrimSpace(r.URL.Query().Get(name))
}

func pageParams(r *http.Request) (page, limit int) {
	return queryInt(r, "page"), queryInt(r, "limit")
}
