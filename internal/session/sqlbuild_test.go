package session

import (
	"strings"
	"testing"
	"time"
)

func TestBuildQuery_PostgresPlaceholders(t *testing.T) {
	query, args := buildQuery("sessions", Query{
		SessionTypes: []SessionType{TypeVoiceOnly, TypeDual},
		Skip:         20,
		Limit:        10,
	}, postgresPlaceholder)

	if !strings.Contains(query, "session_type IN ($1, $2)") {
		t.Errorf("query missing numbered IN clause: %s", query)
	}
	if !strings.HasSuffix(query, "ORDER BY created_at DESC, id DESC LIMIT $3 OFFSET $4") {
		t.Errorf("unexpected tail: %s", query)
	}
	if len(args) != 4 || args[2] != 10 || args[3] != 20 {
		t.Errorf("args = %v", args)
	}
}

func TestBuildCount_DayWindow(t *testing.T) {
	since := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	query, args := buildCount("sessions", CountFilter{Since: since, Until: since.AddDate(0, 0, 1)}, sqlitePlaceholder)
	if !strings.Contains(query, "created_at >= ? AND created_at < ?") {
		t.Errorf("query = %s", query)
	}
	if len(args) != 2 || args[0] != since.UnixNano() {
		t.Errorf("args = %v", args)
	}
}

func TestBuildQuery_VoicePredicate(t *testing.T) {
	query, args := buildQuery("sessions", Query{VoiceQualifying: true}, sqlitePlaceholder)
	if !strings.Contains(query, voicePredicate) {
		t.Errorf("query = %s", query)
	}
	if len(args) != 0 {
		t.Errorf("args = %v, want none", args)
	}
}
