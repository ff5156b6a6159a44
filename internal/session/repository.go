package session

import (
	"context"
	"time"
)

// Query selects records for Repository.Query. Results are always newest first
// (timestamp desc, id desc).
type Query struct {
	// SessionTypes is an OR filter. Empty matches every type.
	SessionTypes []SessionType
	// VoiceQualifying restricts results to Record.HasVoice.
	VoiceQualifying bool
	Skip            int
	// Limit <= 0 means no limit.
	Limit int
}

// CountFilter narrows Repository.Count. Zero values match everything.
type CountFilter struct {
	SessionTypes    []SessionType
	VoiceQualifying bool
	// Since is inclusive, Until exclusive.
	Since time.Time
	Until time.Time
}

// Repository is the durable record backend.
type Repository interface {
	Put(ctx context.Context, rec *Record) error
	// Get returns (nil, nil) when id is unknown.
	Get(ctx context.Context, id string) (*Record, error)
	Query(ctx context.Context, q Query) ([]*Record, error)
	// DeleteByID reports whether a row was removed.
	DeleteByID(ctx context.Context, id string) (bool, error)
	Count(ctx context.Context, f CountFilter) (int, error)
	Ping(ctx context.Context) error
	Close() error
}

// Driver names the backend behind a Repository, for health output.
type Driver interface {
	Driver() string
}
