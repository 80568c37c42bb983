package cascade

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"folio/internal/audit"
	"folio/internal/canon"
	"folio/internal/config"
	"folio/internal/contrast"
	"folio/internal/decisions"
	"folio/internal/logging"
	"folio/internal/review"
	"folio/internal/reviewstore"
	"folio/internal/services"
	"folio/internal/story"
)

// Engine runs audits, passes and cascades against a story library.
type Engine struct {
	cfg       *config.Config
	stories   *story.FileStore
	reviews   *reviewstore.Store
	decisions *decisions.Store
	canon     *canon.Provider
	auditors  *audit.Suite
	contrast  *contrast.Checker
	policy    review.Policy
	logger    *slog.Logger
	newRunID  func() string
}

// Option customizes an Engine.
type Option func(*Engine)

// WithClock fixes the timestamp source of every store. Intended for tests.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		e.stories.WithClock(now)
		e.reviews.WithClock(now)
	}
}

// WithRunIDs overrides run identifier generation.
func WithRunIDs(next func() string) Option {
	return func(e *Engine) {
		e.newRunID = next
	}
}

// NewEngine wires the cascade components from configuration.
func NewEngine(cfg *config.Config, logger *slog.Logger, opts ...Option) (*Engine, error) {
	if cfg == nil {
		return nil, services.Wrap(services.ErrConfiguration, "cascade", "init", "config is required", nil)
	}
	policy, err := review.NewPolicy(cfg.Cascade.MaxPasses, cfg.Cascade.Blocking)
	if err != nil {
		return nil, services.Wrap(services.ErrConfiguration, "cascade", "policy", "", err)
	}
	auditOpts, err := audit.OptionsFromConfig(cfg.Audit)
	if err != nil {
		return nil, services.Wrap(services.ErrConfiguration, "cascade", "audit options", "", err)
	}
	reviews := reviewstore.New(cfg.Paths.LibraryDir)
	e := &Engine{
		cfg:       cfg,
		stories:   story.NewFileStore(cfg.Paths.LibraryDir),
		reviews:   reviews,
		decisions: decisions.NewStore(reviews),
		canon:     canon.NewProvider(cfg.Paths.LibraryDir, cfg.InboxRoot(), reviews, logger),
		auditors:  audit.NewSuite(auditOpts),
		contrast:  contrast.NewChecker(auditOpts, cfg.Audit.ContrastDriftThreshold),
		policy:    policy,
		logger:    logging.NewComponentLogger(logger, "cascade"),
		newRunID:  uuid.NewString,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// Policy returns the severity policy table in use.
func (e *Engine) Policy() review.Policy {
	return e.policy
}

// Reviews exposes the sidecar store for read-only views.
func (e *Engine) Reviews() *reviewstore.Store {
	return e.reviews
}

func validateTarget(book, storyID string) (string, error) {
	book, err := story.ValidateBookRelPath(book)
	if err != nil {
		return "", services.Wrap(services.ErrValidation, "cascade", "validate", "", err)
	}
	if storyID != "" {
		if err := story.ValidateStoryID(storyID); err != nil {
			return "", services.Wrap(services.ErrValidation, "cascade", "validate", "", err)
		}
	}
	return book, nil
}

func validatePassIndex(passIndex int) error {
	if passIndex < 1 {
		return services.Wrap(services.ErrValidation, "cascade", "validate", fmt.Sprintf("pass index must be >= 1, got %d", passIndex), nil)
	}
	return nil
}

func (e *Engine) storyContext(ctx context.Context, book, storyID string, stage review.Stage) context.Context {
	ctx = services.WithBook(ctx, book)
	ctx = services.WithStoryID(ctx, storyID)
	return services.WithStage(ctx, string(stage))
}

func (e *Engine) resolveContext(ctx context.Context, book, inboxTitle string) (*canon.Context, error) {
	return e.canon.Resolve(ctx, book, inboxTitle)
}
