package generation

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"answerd/internal/search"
)

// SessionConfig wires one session.
type SessionConfig struct {
	ID       string
	Provider Provider
	Gate     Gate
	// Consent, when set, is asked before a model-loading provider starts.
	Consent DownloadConsent
	// Compose builds the conversation once the gate resolves. When nil,
	// Messages is used as is.
	Compose  func(results []search.Result) []Message
	Messages []Message
	Params   Params
	// ThrottleInterval bounds the response publish rate (DefaultThrottleInterval when 0).
	ThrottleInterval time.Duration
	Publisher        EventPublisher
}

// Session sequences one generation: consent, model load, search gate,
// streaming and the terminal transition. Its Tracker is the only state it
// shares with observers and providers.
type Session struct {
	cfg     SessionConfig
	tracker *Tracker
	started atomic.Bool
	created time.Time
}

// NewSession constructs an idle session.
func NewSession(cfg SessionConfig) *Session {
	if cfg.Publisher == nil {
		cfg.Publisher = NoopPublisher{}
	}
	return &Session{cfg: cfg, tracker: NewTracker(cfg.ID, cfg.Publisher), created: time.Now()}
}

func (s *Session) ID() string           { return s.cfg.ID }
func (s *Session) Tracker() *Tracker    { return s.tracker }
func (s *Session) Snapshot() Snapshot   { return s.tracker.Snapshot() }
func (s *Session) CreatedAt() time.Time { return s.created }

func (s *Session) ProviderName() string {
	if s.cfg.Provider == nil {
		return ""
	}
	return s.cfg.Provider.Name()
}

// Interrupt requests interruption; a no-op once the session is terminal.
func (s *Session) Interrupt() bool { return s.tracker.Interrupt() }

// Run executes the session to a terminal state and returns the generated text.
// An interrupted session returns the text produced so far together with an
// error for which IsInterrupted is true. Run may be called once.
func (s *Session) Run(ctx context.Context) (string, error) {
	if !s.started.CompareAndSwap(false, true) {
		return "", errors.New("session already started")
	}
	if s.cfg.Provider == nil {
		err := errors.New("no provider configured")
		s.tracker.fail(err)
		return "", err
	}
	name := s.cfg.Provider.Name()
	log := zerolog.Ctx(ctx).With().Str("session", s.cfg.ID).Str("provider", name).Logger()
	ctx = log.WithContext(ctx)
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	s.tracker.bind(cancel)

	start := time.Now()
	log.Debug().Msg("session start")
	text, err := s.run(ctx, &log)

	outcome := "completed"
	switch {
	case err == nil:
		if !s.tracker.complete() {
			outcome = string(s.tracker.State())
		}
	case IsInterrupted(err) || s.tracker.State() == StateInterrupted:
		s.tracker.Interrupt()
		outcome = string(StateInterrupted)
		err = Interrupted(err)
	default:
		s.tracker.fail(err)
		outcome = string(StateFailed)
	}
	sessionsTotal.WithLabelValues(name, outcome).Inc()
	sessionDuration.WithLabelValues(name, outcome).Observe(time.Since(start).Seconds())

	ev := log.Info()
	if outcome == string(StateFailed) {
		ev = log.Error().Err(err)
	}
	ev.Str("outcome", outcome).Dur("dur", time.Since(start)).Int("chars", len(text)).Msg("session end")
	return text, err
}

func (s *Session) run(ctx context.Context, log *zerolog.Logger) (string, error) {
	if err := CheckInterrupted(ctx); err != nil {
		return "", err
	}
	p := s.cfg.Provider
	loads := false
	if ml, ok := p.(ModelLoader); ok {
		loads = ml.LoadsModel()
	}
	if loads && s.cfg.Consent != nil {
		s.tracker.set(StateAwaitingModelDownloadAllowance)
		ok, err := s.cfg.Consent.Allow(ctx)
		if err != nil {
			return "", Classify(ctx, err)
		}
		if !ok {
			return "", NewProviderError(FailureConsentDenied, p.Name(), "download", errors.New("model download was not allowed"))
		}
	}
	if loads {
		s.tracker.set(StateLoadingModel)
	}
	gen, err := p.Start(ctx, s.tracker.setProgress)
	if err != nil {
		return "", Classify(ctx, err)
	}
	defer func() {
		if cerr := gen.Close(); cerr != nil {
			log.Warn().Err(cerr).Msg("provider close failed")
		}
	}()
	if loads {
		s.tracker.setProgress(100)
	}

	results, err := s.cfg.Gate.Wait(ctx, s.tracker)
	if err != nil {
		return "", err
	}
	s.tracker.set(StatePreparingToGenerate)
	messages := s.cfg.Messages
	if s.cfg.Compose != nil {
		messages = s.cfg.Compose(results)
	}
	log.Debug().Int("results", len(results)).Int("messages", len(messages)).Msg("generation start")

	th := NewThrottle(s.cfg.ThrottleInterval, s.tracker.setResponse)
	text, err := gen.Generate(ctx, messages, s.cfg.Params, func(text string) {
		if !s.tracker.accepting() {
			return
		}
		if text != "" {
			s.tracker.markGenerating()
		}
		th.Emit(text)
	})
	final := text
	if err != nil && len(th.Last()) > len(final) {
		final = th.Last()
	}
	th.Flush(final)
	return final, err
}
