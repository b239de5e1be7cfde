package courier

import (
	"fmt"
	"net/http"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// debugLogger is the package-level zerolog logger for debug output.
var debugLogger = zerolog.New(os.Stdout).With().Timestamp().Logger()

// logRequest logs the request details using zerolog.
func logRequest(logger zerolog.Logger, req *http.Request) {
	logger.Debug().
		Str("method", req.Method).
		Str("url", req.URL.String()).
		Str("host", req.Host).
		Msg("HTTP request")
}

// logResponse logs the response details using zerolog.
func logResponse(logger zerolog.Logger, resp *http.Response, duration time.Duration) {
	logger.Debug().
		Int("status", resp.StatusCode).
		Str("status_text", resp.Status).
		Dur("duration_ms", duration).
		Int64("content_length", resp.ContentLength).
		Msg("HTTP response")
}

// curlCommand creates a cURL command equivalent for the given request
// config, useful for reproducing a dispatch from the command line.
// Sensitive headers like Authorization are included verbatim.
func curlCommand(cfg *RequestConfig, body []byte) string {
	var parts []string

	parts = append(parts, "curl")

	if cfg.Method != "" && cfg.Method != http.MethodGet {
		parts = append(parts, "-X", cfg.Method)
	}

	parts = append(parts, fmt.Sprintf("'%s'", cfg.URL))

	// Headers (sorted for consistent output)
	headerKeys := make([]string, 0, len(cfg.Headers))
	for k := range cfg.Headers {
		headerKeys = append(headerKeys, k)
	}
	sort.Strings(headerKeys)

	for _, k := range headerKeys {
		parts = append(parts, "-H", fmt.Sprintf("'%s: %s'", k, cfg.Headers[k]))
	}

	if len(body) > 0 {
		bodyStr := strings.ReplaceAll(string(body), "'", "'\\''")
		parts = append(parts, "-d", fmt.Sprintf("'%s'", bodyStr))
	}

	return strings.Join(parts, " ")
}
