package session

import (
	"context"
	"crypto/rand"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	apperrors "github.com/pagepilot/pagepilot/internal/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	log "github.com/sirupsen/logrus"
)

// Defaults for read operations.
const (
	DefaultPage        = 1
	DefaultPageSize    = 10
	MaxPageSize        = 100
	DefaultLatestLimit = 5
	DefaultVoiceLimit  = 10
)

const (
	msgSaveFailed  = "failed to save session"
	msgFetchFailed = "failed to fetch sessions"
)

var sessionsCreated = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "pagepilot_sessions_created_total",
		Help: "Sessions stored, by session type.",
	},
	[]string{"session_type"},
)

// ListOptions drives Store.List. Page and PageSize fall back to DefaultPage and
// DefaultPageSize when non-positive; PageSize is capped at MaxPageSize.
type ListOptions struct {
	SessionTypes []SessionType
	Page         int
	PageSize     int
}

// Page is one page of List results.
type Page struct {
	Records    []*Record `json:"records"`
	Total      int       `json:"total"`
	Page       int       `json:"page"`
	PageSize   int       `json:"pageSize"`
	TotalPages int       `json:"totalPages"`
}

// Store is the session service over a Repository.
type Store struct {
	repo Repository
	now  func() time.Time

	entropyMu sync.Mutex
	entropy   *ulid.MonotonicEntropy
}

// NewStore wraps repo.
func NewStore(repo Repository) *Store {
	return &Store{
		repo:    repo,
		now:     time.Now,
		entropy: ulid.Monotonic(rand.Reader, 0),
	}
}

// Driver returns the backend name, or "unknown".
func (s *Store) Driver() string {
	if d, ok := s.repo.(Driver); ok {
		return d.Driver()
	}
	return "unknown"
}

func (s *Store) newID(at time.Time) string {
	s.entropyMu.Lock()
	defer s.entropyMu.Unlock()
	return ulid.MustNew(ulid.Timestamp(at), s.entropy).String()
}

// Create validates in, fills derived fields and stores the record.
func (s *Store) Create(ctx context.Context, in CreateInput) (*Record, error) {
	rec, err := in.build()
	if err != nil {
		return nil, err
	}
	rec.Timestamp = s.now().UTC()
	rec.ID = s.newID(rec.Timestamp)

	if err := s.repo.Put(ctx, rec); err != nil {
		log.WithError(err).WithField("url", rec.URL).Error("session: put failed")
		return nil, apperrors.StoreUnavailable(msgSaveFailed, err)
	}
	sessionsCreated.WithLabelValues(string(rec.SessionType)).Inc()
	log.WithFields(log.Fields{
		"id":           rec.ID,
		"session_type": rec.SessionType,
		"tags":         rec.Tags,
	}).Debug("session stored")
	return rec, nil
}

// List returns one page of records, newest first.
func (s *Store) List(ctx context.Context, opts ListOptions) (*Page, error) {
	page := opts.Page
	if page <= 0 {
		page = DefaultPage
	}
	size := opts.PageSize
	if size <= 0 {
		size = DefaultPageSize
	}
	if size > MaxPageSize {
		size = MaxPageSize
	}

	total, err := s.repo.Count(ctx, CountFilter{SessionTypes: opts.SessionTypes})
	if err != nil {
		return nil, apperrors.StoreUnavailable(msgFetchFailed, err)
	}
	out := &Page{
		Records:    []*Record{},
		Total:      total,
		Page:       page,
		PageSize:   size,
		TotalPages: (total + size - 1) / size,
	}
	// Pages past the end never reach the backend, so (page-1)*size cannot overflow.
	if page > out.TotalPages {
		return out, nil
	}
	records, err := s.repo.Query(ctx, Query{
		SessionTypes: opts.SessionTypes,
		Skip:         (page - 1) * size,
		Limit:        size,
	})
	if err != nil {
		return nil, apperrors.StoreUnavailable(msgFetchFailed, err)
	}
	if records != nil {
		out.Records = records
	}
	return out, nil
}

// Latest returns up to limit records, newest first.
func (s *Store) Latest(ctx context.Context, limit int) ([]*Record, error) {
	if limit <= 0 {
		limit = DefaultLatestLimit
	}
	return s.query(ctx, Query{Limit: clampLimit(limit)})
}

// VoiceOnly returns up to limit records carrying voice content, newest first.
func (s *Store) VoiceOnly(ctx context.Context, limit int) ([]*Record, error) {
	if limit <= 0 {
		limit = DefaultVoiceLimit
	}
	return s.query(ctx, Query{VoiceQualifying: true, Limit: clampLimit(limit)})
}

// Newest returns the most recent record or a NotFound error.
func (s *Store) Newest(ctx context.Context) (*Record, error) {
	recs, err := s.query(ctx, Query{Limit: 1})
	if err != nil {
		return nil, err
	}
	if len(recs) == 0 {
		return nil, apperrors.NotFound("no sessions stored")
	}
	return recs[0], nil
}

func (s *Store) query(ctx context.Context, q Query) ([]*Record, error) {
	records, err := s.repo.Query(ctx, q)
	if err != nil {
		return nil, apperrors.StoreUnavailable(msgFetchFailed, err)
	}
	if records == nil {
		records = []*Record{}
	}
	return records, nil
}

// Get fetches one record.
func (s *Store) Get(ctx context.Context, id string) (*Record, error) {
	rec, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, apperrors.StoreUnavailable(msgFetchFailed, err)
	}
	if rec == nil {
		return nil, apperrors.NotFound("session not found")
	}
	return rec, nil
}

// Delete removes one record.
func (s *Store) Delete(ctx context.Context, id string) error {
	removed, err := s.repo.DeleteByID(ctx, id)
	if err != nil {
		return apperrors.StoreUnavailable("failed to delete session", err)
	}
	if !removed {
		return apperrors.NotFound("session not found")
	}
	return nil
}

// CountByDay counts records created on the UTC calendar day containing day.
func (s *Store) CountByDay(ctx context.Context, day time.Time) (int, error) {
	d := day.UTC()
	start := time.Date(d.Year(), d.Month(), d.Day(), 0, 0, 0, 0, time.UTC)
	return s.count(ctx, CountFilter{Since: start, Until: start.AddDate(0, 0, 1)})
}

// CountToday is CountByDay for the current instant.
func (s *Store) CountToday(ctx context.Context) (int, error) {
	return s.CountByDay(ctx, s.now())
}

// CountTotal counts every record.
func (s *Store) CountTotal(ctx context.Context) (int, error) {
	return s.count(ctx, CountFilter{})
}

// CountVoice counts records in the voice subset.
func (s *Store) CountVoice(ctx context.Context) (int, error) {
	return s.count(ctx, CountFilter{VoiceQualifying: true})
}

func (s *Store) count(ctx context.Context, f CountFilter) (int, error) {
	n, err := s.repo.Count(ctx, f)
	if err != nil {
		return 0, apperrors.StoreUnavailable(msgFetchFailed, err)
	}
	return n, nil
}

// Ping checks backend connectivity.
func (s *Store) Ping(ctx context.Context) error {
	return s.repo.Ping(ctx)
}

// Close releases the backend.
func (s *Store) Close() error {
	return s.repo.Close()
}

func clampLimit(limit int) int {
	if limit > MaxPageSize {
		return MaxPageSize
	}
	return limit
}
