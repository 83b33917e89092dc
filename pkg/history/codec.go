package history

import (
	"encoding/json"
	"log/slog"

	"github.com/myoungjelee/AI-Lookbook-Studio-sub001/pkg/domain"
)

// The stored value for each sequence key is a JSON array, newest first.
// Reads never fail: absent, empty or corrupt values decode to an empty
// sequence so a damaged store degrades instead of breaking the app.

func decodeInputs(raw string) []domain.InputRecord {
	if raw == "" {
		return nil
	}
	var records []domain.InputRecord
	if err := json.Unmarshal([]byte(raw), &records); err != nil {
		slog.Debug("discarding unreadable input history", "error", err)
		return nil
	}
	return records
}

func decodeOutputs(raw string) []domain.OutputRecord {
	if raw == "" {
		return nil
	}
	var records []domain.OutputRecord
	if err := json.Unmarshal([]byte(raw), &records); err != nil {
		slog.Debug("discarding unreadable output history", "error", err)
		return nil
	}
	return records
}

func encodeRecords(v any) (string, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return string(data), nil
}
