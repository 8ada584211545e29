package middleware

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"sort"
)

// WebhookTap logs which parts of an incoming webhook are present. It never logs
// header values or body values.
func WebhookTap(logger *slog.Logger, checksumHeader string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !logger.Enabled(r.Context(), slog.LevelDebug) || r.Body == nil {
				next.ServeHTTP(w, r)
				return
			}

			body, err := io.ReadAll(r.Body)
			_ = r.Body.Close()
			r.Body = io.NopCloser(bytes.NewReader(body))
			if err != nil {
				next.ServeHTTP(w, r)
				return
			}

			logger.Debug("webhook received",
				"has_checksum_header", r.Header.Get(checksumHeader) != "",
				"content_length", len(body),
				"body_keys", topLevelKeys(body),
			)
			next.ServeHTTP(w, r)
		})
	}
}

func topLevelKeys(body []byte) []string {
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(body, &obj); err != nil {
		return nil
	}
	keys := make([]string, 0, len(obj))
	for k := range obj {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
