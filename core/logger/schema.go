package logger

import "strings"

// Level names as written in the level field.
var levelNames = map[string]string{
	"debug":   "DEBUG",
	"info":    "INFO",
	"warn":    "WARN",
	"warning": "WARN",
	"error":   "ERROR",
}

// Status and outcome values the tree emits. Unknown statuses are kept
// lowercased; unknown outcomes are dropped.
var (
	knownStatus  = map[string]bool{"ok": true, "fail": true, "skip": true}
	knownOutcome = map[string]bool{"ok": true, "fail": true}
)

func normalizeLevel(level string) string {
	if level == "" {
		return "INFO"
	}
	if name, ok := levelNames[strings.ToLower(level)]; ok {
		return name
	}
	return strings.ToUpper(level)
}

func normalizeStatus(status string) (string, bool) {
	status = strings.ToLower(strings.TrimSpace(status))
	return status, knownStatus[status]
}

func normalizeOutcome(outcome string) (string, bool) {
	outcome = strings.ToLower(strings.TrimSpace(outcome))
	return outcome, knownOutcome[outcome]
}

// defaultKeyOrder puts the fields every line carries first, then the
// conversation fields, then per-component details. Other keys follow sorted.
var defaultKeyOrder = []string{
	// envelope
	"ts", "level", "component", "event", "status", "rid", "rid_full", "ts_unix_nano",
	// who and where
	"update_id", "user_id", "chat_id", "chat_type", "username", "lang",
	// conversation
	"handler", "rule", "state", "state_from", "state_to", "outcome", "duration_ms",
	"answer_id", "text", "sessions", "count",
	// worker and transport
	"shard", "queue", "payload", "rate_limited", "mode", "listen", "public_url",
	// ops http and storage
	"method", "path", "http_code", "db", "driver",
	// failure
	"err", "err_code", "cause",
}
