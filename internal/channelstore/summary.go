package channelstore

import (
	"encoding/json"
	"time"

	"github.com/alvesfc/openbotx/internal/model"
)

func parseTimestamp(s string) (time.Time, error) {
	return time.Parse(time.RFC3339, s)
}

type summaryWire struct {
	UserSummary         *string `json:"user_summary"`
	ConversationSummary *string `json:"conversation_summary"`
	UpdatedAt           string  `json:"updated_at"`
}

// SerializeSummary renders a SummaryRecord as the §6 JSON object, emitting
// null for empty summary fields.
func SerializeSummary(r model.SummaryRecord) ([]byte, error) {
	w := summaryWire{UpdatedAt: r.UpdatedAt.UTC().Format("2006-01-02T15:04:05Z07:00")}
	if r.UserSummary != "" {
		w.UserSummary = &r.UserSummary
	}
	if r.ConversationSummary != "" {
		w.ConversationSummary = &r.ConversationSummary
	}
	return json.MarshalIndent(w, "", "  ")
}

// ParseSummary reads the §6 JSON summary object back into a SummaryRecord.
func ParseSummary(raw []byte) (model.SummaryRecord, error) {
	var w summaryWire
	if err := json.Unmarshal(raw, &w); err != nil {
		return model.SummaryRecord{}, err
	}
	var rec model.SummaryRecord
	if w.UserSummary != nil {
		rec.UserSummary = *w.UserSummary
	}
	if w.ConversationSummary != nil {
		rec.ConversationSummary = *w.ConversationSummary
	}
	if w.UpdatedAt != "" {
		if ts, err := parseTimestamp(w.UpdatedAt); err == nil {
			rec.UpdatedAt = ts
		}
	}
	return rec, nil
}
