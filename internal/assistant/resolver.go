package assistant

import (
	"context"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	apperrors "github.com/pagepilot/pagepilot/internal/errors"
	"github.com/pagepilot/pagepilot/internal/session"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	log "github.com/sirupsen/logrus"
)

// Source says where a reply came from.
type Source string

const (
	SourceRemote   Source = "remote"
	SourceLocal    Source = "local"
	SourceFallback Source = "fallback"
)

// Defaults for NewResolver.
const (
	DefaultTimeout         = 10 * time.Second
	DefaultMaxContextChars = 500
)

// SystemInstruction is sent with every remote request.
const SystemInstruction = "You are PagePilot, a concise assistant for a browser extension. " +
	"Answer clearly in plain language. For health questions give general information and suggest seeing a doctor for anything serious."

const analysisInstruction = "Analyse the following captured page content. Summarise the key points, " +
	"note anything that needs attention, and suggest next steps:\n\n"

// ErrNothingToAnalyse is returned when the newest session carries no text.
var ErrNothingToAnalyse = apperrors.New(http.StatusBadRequest, "NOTHING_TO_ANALYSE", "latest session has no text to analyse", nil)

var resolutions = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "pagepilot_resolutions_total",
		Help: "Chat replies by source.",
	},
	[]string{"source"},
)

// Result is a resolved reply. Text is never empty.
type Result struct {
	Text     string `json:"text"`
	Source   Source `json:"source"`
	Category string `json:"category,omitempty"`
}

// LatestSource yields the newest stored session.
type LatestSource interface {
	Newest(ctx context.Context) (*session.Record, error)
}

// Options configures a Resolver.
type Options struct {
	Classifier Classifier
	// Responder may be nil, in which case only local answers are produced.
	Responder       Responder
	Sessions        LatestSource
	Timeout         time.Duration
	MaxContextChars int
}

// Resolver decides between local and remote answers.
type Resolver struct {
	classifier      Classifier
	responder       Responder
	sessions        LatestSource
	timeout         atomic.Int64
	maxContextChars int
}

// NewResolver builds a Resolver, applying defaults for zero options.
func NewResolver(opts Options) *Resolver {
	r := &Resolver{
		classifier:      opts.Classifier,
		responder:       opts.Responder,
		sessions:        opts.Sessions,
		maxContextChars: opts.MaxContextChars,
	}
	if r.classifier == nil {
		r.classifier = NewRuleClassifier(nil)
	}
	if r.maxContextChars <= 0 {
		r.maxContextChars = DefaultMaxContextChars
	}
	r.SetTimeout(opts.Timeout)
	return r
}

// SetTimeout changes the per-call remote deadline. Non-positive selects
// DefaultTimeout.
func (r *Resolver) SetTimeout(d time.Duration) {
	if d <= 0 {
		d = DefaultTimeout
	}
	r.timeout.Store(int64(d))
}

// Classify exposes the local classifier, for callers that need an answer
// without any remote attempt.
func (r *Resolver) Classify(question string) Classification {
	return r.classifier.Classify(question)
}

// LocalReply returns the canned answer for question or GenericReply.
func (r *Resolver) LocalReply(question string) string {
	if c := r.classifier.Classify(question); c.Matched && c.Answer != "" {
		return c.Answer
	}
	return GenericReply
}

// Resolve answers question. It never fails: remote errors degrade to the local
// answer, then to GenericReply.
func (r *Resolver) Resolve(ctx context.Context, question string) Result {
	return r.ResolvePrompt(ctx, question, question)
}

// ResolvePrompt classifies question but sends prompt upstream, so context
// appended to a question never selects a canned answer. A blank question with a
// non-blank prompt skips the classifier.
func (r *Resolver) ResolvePrompt(ctx context.Context, question, prompt string) Result {
	res := r.resolve(ctx, strings.TrimSpace(question), strings.TrimSpace(prompt))
	resolutions.WithLabelValues(string(res.Source)).Inc()
	return res
}

func (r *Resolver) resolve(ctx context.Context, question, prompt string) Result {
	local := Result{Text: GenericReply, Source: SourceFallback}
	if prompt == "" {
		return local
	}

	c := Classification{AllowRemote: true}
	if question != "" {
		c = r.classifier.Classify(question)
	}
	if c.Matched && c.Answer != "" {
		local = Result{Text: c.Answer, Source: SourceLocal, Category: c.Category}
	}
	if (c.Matched && !c.AllowRemote) || r.responder == nil {
		return local
	}

	callCtx, cancel := context.WithTimeout(ctx, time.Duration(r.timeout.Load()))
	defer cancel()

	text, err := r.responder.Respond(callCtx, prompt, SystemInstruction)
	if err != nil {
		log.WithError(err).WithField("category", c.Category).Debug("remote responder failed, using local answer")
		return local
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return local
	}
	return Result{Text: text, Source: SourceRemote, Category: c.Category}
}

// AnalyseLatest resolves an analysis prompt built from the newest session and
// returns it with that session's id.
func (r *Resolver) AnalyseLatest(ctx context.Context) (Result, string, error) {
	if r.sessions == nil {
		return Result{}, "", apperrors.Internal("analysis is not configured", nil)
	}
	rec, err := r.sessions.Newest(ctx)
	if err != nil {
		return Result{}, "", err
	}
	text := rec.CombinedText()
	if text == "" {
		return Result{}, rec.ID, ErrNothingToAnalyse
	}
	return r.ResolvePrompt(ctx, "", analysisInstruction+truncateRunes(text, r.maxContextChars)), rec.ID, nil
}

// ComposeQuestion appends rec's text to question as context for an
// analyse-style chat. A nil or empty record leaves question unchanged.
func (r *Resolver) ComposeQuestion(question string, rec *session.Record) string {
	text := rec.CombinedText()
	if text == "" {
		return question
	}
	return strings.TrimSpace(question) + "\n\nContext from the latest captured page:\n" + truncateRunes(text, r.maxContextChars)
}
