package router

import (
	"context"
	"fmt"
	"strings"
	"time"

	"drdoc/internal/config"
	"drdoc/internal/logging"
)

// Request is one question posed to the router. Strategy defaults to
// auto; Context is optional free-form text supplied by the caller and
// appended to the question for retrieval.
type Request struct {
	Question  string   `json:"question"`
	Context   string   `json:"context,omitempty"`
	Strategy  Strategy `json:"strategy,omitempty"`
	SessionID string   `json:"session_id,omitempty"`
}

// Router answers questions by classifying them, invoking the retrieval
// collaborators the strategy calls for, and composing their results.
// It holds no per-query state: concurrent calls to Answer are safe as
// long as the collaborators are.
type Router struct {
	cfg        config.RouterConfig
	classifier *Classifier
	composer   *Composer
	semantic   SemanticSource
	symbolic   SymbolicSource
}

// Option customizes router construction.
type Option func(*options)

type options struct {
	patterns []string
	policy   ContradictionPolicy
}

// WithFactPatterns replaces the classifier's fact-intent patterns.
func WithFactPatterns(patterns []string) Option {
	return func(o *options) { o.patterns = patterns }
}

// WithContradictionPolicy replaces the composer's contradiction policy.
func WithContradictionPolicy(p ContradictionPolicy) Option {
	return func(o *options) { o.policy = p }
}

// New builds a router over the two retrieval collaborators. symbolic
// may be nil, which disables the fact store: fact-like questions then
// fall back to semantic retrieval instead of going hybrid.
func New(cfg config.RouterConfig, sem SemanticSource, sym SymbolicSource, opts ...Option) (*Router, error) {
	if sem == nil {
		return nil, fmt.Errorf("semantic source is required")
	}
	o := options{patterns: DefaultFactPatterns}
	for _, opt := range opts {
		opt(&o)
	}
	classifier, err := NewClassifier(o.patterns, sym != nil)
	if err != nil {
		return nil, err
	}
	return &Router{
		cfg:        cfg,
		classifier: classifier,
		composer:   NewComposer(cfg, o.policy),
		semantic:   sem,
		symbolic:   sym,
	}, nil
}

// Answer processes one question end to end. Collaborator failures
// degrade to zero-confidence results and never surface as errors; only
// malformed input (empty question, invalid strategy, symbolic strategy
// with no fact store) is rejected.
func (r *Router) Answer(ctx context.Context, req Request) (*ComposedResult, error) {
	if strings.TrimSpace(req.Question) == "" {
		return nil, fmt.Errorf("question must not be empty")
	}
	strategy := req.Strategy
	if strategy == "" {
		strategy = StrategyAuto
	}
	switch strategy {
	case StrategyAuto, StrategySemantic, StrategySymbolic, StrategyHybrid:
	default:
		return nil, fmt.Errorf("invalid strategy %q", strategy)
	}
	if r.symbolic == nil && (strategy == StrategySymbolic || strategy == StrategyHybrid) {
		return nil, fmt.Errorf("strategy %q requires the fact store, which is disabled", strategy)
	}

	start := time.Now()
	question := req.Question
	if ctxText := strings.TrimSpace(req.Context); ctxText != "" {
		question = question + "\n\nContext: " + ctxText
	}

	// An explicit caller strategy bypasses classification entirely.
	if strategy == StrategyAuto {
		strategy = r.classifier.Classify(question)
		logging.RouterDebug("classified question as %s", strategy)
	} else {
		logging.RouterDebug("caller requested strategy %s", strategy)
	}

	var symRes, semRes *SourceResult
	switch strategy {
	case StrategySemantic:
		semRes = r.invokeSemantic(ctx, question)
	case StrategySymbolic:
		symRes = r.invokeSymbolic(ctx, question)
	case StrategyHybrid:
		symRes, semRes = r.invokeBoth(ctx, question)
	}

	result := r.composer.Compose(strategy, symRes, semRes)
	result.ResponseTime = time.Since(start).Seconds()
	logging.Router("answered via %s in %.3fs (confidence %.2f, %d facts, %d sources)",
		result.QueryType, result.ResponseTime, result.Confidence, len(result.Facts), len(result.Sources))
	return &result, nil
}
