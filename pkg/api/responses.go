package api

import "time"

// TimestampLayout matches the ISO-8601 form browsers produce with toISOString.
const TimestampLayout = "2006-01-02T15:04:05.000Z07:00"

// FormatTimestamp renders t in UTC with TimestampLayout.
func FormatTimestamp(t time.Time) string {
	return t.UTC().Format(TimestampLayout)
}

// ChatResponse is the aggregated result of the non-streaming endpoint.
type ChatResponse struct {
	Response  string `json:"response"`
	Model     string `json:"model"`
	Timestamp string `json:"timestamp"`
	Mock      bool   `json:"mock,omitempty"`
}

type ModelsResponse struct {
	Models   []string          `json:"models"`
	Prompts  map[string]string `json:"prompts"`
	MockMode bool              `json:"mockMode"`
}

type HealthResponse struct {
	Status      string `json:"status"`
	Timestamp   string `json:"timestamp"`
	Environment string `json:"environment"`
}
