package models

// LogEntry is a single server log line shaped for UI display.
type LogEntry struct {
	Timestamp string `json:"timestamp"` // "15:04:05" display format
	Level     string `json:"level"`     // 3-letter code (INF, WRN, ERR, DBG)
	Message   string `json:"message"`
}
