// Package session owns captured page sessions: validation and derivation on
// write, durable storage behind Repository, and the paginated query surface.
package session

import (
	"strings"
	"time"
	"unicode/utf8"

	apperrors "github.com/pagepilot/pagepilot/internal/errors"
)

// SummaryType is the style of summary the extension produced.
type SummaryType string

const (
	SummaryBrief           SummaryType = "brief"
	SummaryDetailed        SummaryType = "detailed"
	SummaryBullets         SummaryType = "bullets"
	SummaryVoiceAndSummary SummaryType = "voice_and_summary"
)

// SessionType classifies which texts a session carries.
type SessionType string

const (
	TypeSummaryOnly SessionType = "summary_only"
	TypeVoiceOnly   SessionType = "voice_only"
	TypeDual        SessionType = "dual"
)

// MaxTags bounds Record.Tags.
const MaxTags = 3

// Record is one stored capture.
type Record struct {
	ID              string      `json:"id"`
	URL             string      `json:"url"`
	PageTitle       string      `json:"pageTitle"`
	SummaryText     string      `json:"summaryText"`
	VoiceText       string      `json:"voiceText"`
	SummaryType     SummaryType `json:"summaryType"`
	SessionType     SessionType `json:"sessionType"`
	SummaryLength   int         `json:"summaryLength"`
	VoiceLength     int         `json:"voiceLength"`
	SessionDuration int64       `json:"sessionDuration"`
	Tags            []string    `json:"tags"`
	UserAgent       string      `json:"userAgent"`
	Timestamp       time.Time   `json:"timestamp"`
	IsArchived      bool        `json:"isArchived"`
}

// CombinedText joins summary and voice text with a space and trims the result.
func (r *Record) CombinedText() string {
	if r == nil {
		return ""
	}
	return strings.TrimSpace(r.SummaryText + " " + r.VoiceText)
}

// HasVoice reports whether the record belongs to the voice subset. A record
// qualifies by type or by carrying voice text, so inconsistent rows still match.
func (r *Record) HasVoice() bool {
	return r.SessionType == TypeVoiceOnly || r.SessionType == TypeDual || r.VoiceText != ""
}

// CreateInput is the caller-supplied part of a new record. Pointer fields
// distinguish "absent" from zero.
type CreateInput struct {
	URL             string
	PageTitle       string
	SummaryText     string
	VoiceText       string
	SummaryType     string
	SessionType     string
	SummaryLength   *int
	VoiceLength     *int
	SessionDuration *int64
	UserAgent       string
}

func parseSummaryType(v string) (SummaryType, bool) {
	switch SummaryType(strings.TrimSpace(v)) {
	case "":
		return SummaryBrief, true
	case SummaryBrief:
		return SummaryBrief, true
	case SummaryDetailed:
		return SummaryDetailed, true
	case SummaryBullets:
		return SummaryBullets, true
	case SummaryVoiceAndSummary:
		return SummaryVoiceAndSummary, true
	}
	return "", false
}

// ParseSessionType accepts the three known session types.
func ParseSessionType(v string) (SessionType, bool) {
	switch t := SessionType(strings.TrimSpace(v)); t {
	case TypeSummaryOnly, TypeVoiceOnly, TypeDual:
		return t, true
	}
	return "", false
}

// DeriveSessionType classifies a session from its trimmed texts.
func DeriveSessionType(summaryText, voiceText string) SessionType {
	hasSummary := strings.TrimSpace(summaryText) != ""
	hasVoice := strings.TrimSpace(voiceText) != ""
	switch {
	case hasSummary && hasVoice:
		return TypeDual
	case hasVoice:
		return TypeVoiceOnly
	default:
		return TypeSummaryOnly
	}
}

// build validates in and returns a record with every derived field filled,
// except ID and Timestamp.
func (in CreateInput) build() (*Record, error) {
	url := strings.TrimSpace(in.URL)
	if url == "" {
		return nil, apperrors.Validation("url", "url is required")
	}
	if strings.TrimSpace(in.SummaryText) == "" && strings.TrimSpace(in.VoiceText) == "" {
		return nil, apperrors.Validation("summaryText", "summaryText or voiceText is required")
	}

	summaryType, ok := parseSummaryType(in.SummaryType)
	if !ok {
		return nil, apperrors.Validation("summaryType", "summaryType must be one of brief, detailed, bullets, voice_and_summary")
	}

	sessionType := DeriveSessionType(in.SummaryText, in.VoiceText)
	if strings.TrimSpace(in.SessionType) != "" {
		if sessionType, ok = ParseSessionType(in.SessionType); !ok {
			return nil, apperrors.Validation("sessionType", "sessionType must be one of summary_only, voice_only, dual")
		}
	}

	summaryLength := utf8.RuneCountInString(in.SummaryText)
	if in.SummaryLength != nil {
		if *in.SummaryLength < 0 {
			return nil, apperrors.Validation("summaryLength", "summaryLength must not be negative")
		}
		summaryLength = *in.SummaryLength
	}
	voiceLength := utf8.RuneCountInString(in.VoiceText)
	if in.VoiceLength != nil {
		if *in.VoiceLength < 0 {
			return nil, apperrors.Validation("voiceLength", "voiceLength must not be negative")
		}
		voiceLength = *in.VoiceLength
	}
	var duration int64
	if in.SessionDuration != nil {
		if *in.SessionDuration < 0 {
			return nil, apperrors.Validation("sessionDuration", "sessionDuration must not be negative")
		}
		duration = *in.SessionDuration
	}

	title := strings.TrimSpace(in.PageTitle)
	if title == "" {
		title = url
	}

	return &Record{
		URL:             url,
		PageTitle:       title,
		SummaryText:     in.SummaryText,
		VoiceText:       in.VoiceText,
		SummaryType:     summaryType,
		SessionType:     sessionType,
		SummaryLength:   summaryLength,
		VoiceLength:     voiceLength,
		SessionDuration: duration,
		Tags:            ExtractTags(in.SummaryText + " " + in.VoiceText),
		UserAgent:       strings.TrimSpace(in.UserAgent),
	}, nil
}
