package session

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

const recordColumns = "id, url, page_title, summary_text, voice_text, summary_type, session_type, " +
	"summary_length, voice_length, session_duration, tags, user_agent, created_at, is_archived"

const voicePredicate = "(session_type IN ('voice_only', 'dual') OR voice_text <> '')"

// whereBuilder assembles a WHERE clause with dialect-specific placeholders.
type whereBuilder struct {
	placeholder func(n int) string
	clauses     []string
	args        []any
}

func (w *whereBuilder) add(clause string, args ...any) {
	for _, arg := range args {
		w.args = append(w.args, arg)
		clause = strings.Replace(clause, "?", w.placeholder(len(w.args)), 1)
	}
	w.clauses = append(w.clauses, clause)
}

func (w *whereBuilder) sessionTypes(types []SessionType) {
	if len(types) == 0 {
		return
	}
	marks := make([]string, len(types))
	args := make([]any, len(types))
	for i, t := range types {
		marks[i] = "?"
		args[i] = string(t)
	}
	w.add("session_type IN ("+strings.Join(marks, ", ")+")", args...)
}

func (w *whereBuilder) String() string {
	if len(w.clauses) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(w.clauses, " AND ")
}

func buildQuery(table string, q Query, placeholder func(int) string) (string, []any) {
	w := &whereBuilder{placeholder: placeholder}
	w.sessionTypes(q.SessionTypes)
	if q.VoiceQualifying {
		w.add(voicePredicate)
	}
	sqlText := "SELECT " + recordColumns + " FROM " + table + w.String() +
		" ORDER BY created_at DESC, id DESC"
	args := w.args
	if q.Limit > 0 {
		sqlText += fmt.Sprintf(" LIMIT %s", placeholder(len(args)+1))
		args = append(args, q.Limit)
	}
	if q.Skip > 0 {
		if q.Limit <= 0 {
			// sqlite rejects OFFSET without LIMIT.
			sqlText += fmt.Sprintf(" LIMIT %s", placeholder(len(args)+1))
			args = append(args, int64(1)<<62)
		}
		sqlText += fmt.Sprintf(" OFFSET %s", placeholder(len(args)+1))
		args = append(args, q.Skip)
	}
	return sqlText, args
}

func buildCount(table string, f CountFilter, placeholder func(int) string) (string, []any) {
	w := &whereBuilder{placeholder: placeholder}
	w.sessionTypes(f.SessionTypes)
	if f.VoiceQualifying {
		w.add(voicePredicate)
	}
	if !f.Since.IsZero() {
		w.add("created_at >= ?", f.Since.UTC().UnixNano())
	}
	if !f.Until.IsZero() {
		w.add("created_at < ?", f.Until.UTC().UnixNano())
	}
	return "SELECT COUNT(*) FROM " + table + w.String(), w.args
}

// rowScanner is satisfied by *sql.Row, *sql.Rows and pgx.Row.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner) (*Record, error) {
	var (
		rec         Record
		summaryType string
		sessionType string
		tags        string
		createdAt   int64
		archived    bool
	)
	if err := row.Scan(&rec.ID, &rec.URL, &rec.PageTitle, &rec.SummaryText, &rec.VoiceText,
		&summaryType, &sessionType, &rec.SummaryLength, &rec.VoiceLength, &rec.SessionDuration,
		&tags, &rec.UserAgent, &createdAt, &archived); err != nil {
		return nil, err
	}
	rec.SummaryType = SummaryType(summaryType)
	rec.SessionType = SessionType(sessionType)
	rec.Timestamp = time.Unix(0, createdAt).UTC()
	rec.IsArchived = archived
	rec.Tags = []string{}
	if tags != "" {
		if err := json.Unmarshal([]byte(tags), &rec.Tags); err != nil {
			return nil, fmt.Errorf("decode tags for %s: %w", rec.ID, err)
		}
	}
	return &rec, nil
}

func recordArgs(rec *Record) ([]any, error) {
	tags := rec.Tags
	if tags == nil {
		tags = []string{}
	}
	encoded, err := json.Marshal(tags)
	if err != nil {
		return nil, fmt.Errorf("encode tags: %w", err)
	}
	return []any{rec.ID, rec.URL, rec.PageTitle, rec.SummaryText, rec.VoiceText,
		string(rec.SummaryType), string(rec.SessionType), rec.SummaryLength, rec.VoiceLength,
		rec.SessionDuration, string(encoded), rec.UserAgent, rec.Timestamp.UTC().UnixNano(), rec.IsArchived}, nil
}
