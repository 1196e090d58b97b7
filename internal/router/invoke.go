package router

import (
	"context"
	"fmt"
	"strings"

	"golang.org/x/sync/errgroup"

	"drdoc/internal/fact"
	"drdoc/internal/logging"
	"drdoc/internal/semantic"
)

// Confidence assigned to a symbolic result that matched at least one
// fact. The fact store does not report per-match confidence, so a hit
// carries this fixed value and a miss carries zero.
const symbolicHitConfidence = 0.9

// SemanticSource is the vector retrieval collaborator. "No match" is a
// normal response with empty citations; an error means infrastructure
// failure.
type SemanticSource interface {
	Query(ctx context.Context, question string) (*semantic.Response, error)
}

// SymbolicSource is the fact store collaborator. An empty slice is the
// normal "no facts" signal, never an error.
type SymbolicSource interface {
	Query(ctx context.Context, question string) ([]fact.Record, error)
}

// SourceResult is the normalized output of one retrieval collaborator
// for one query. Built fresh per query and owned by the composer.
type SourceResult struct {
	AnswerText  string
	Confidence  float64
	Facts       []fact.Record
	Citations   []semantic.Citation
	StrategyTag Strategy
	Err         error
}

// invokeSemantic runs the semantic collaborator and wraps its response
// into a SourceResult. The collaborator does not report confidence, so
// a successful retrieval gets the configured default. Failures degrade
// to a zero-confidence result carrying the error text.
func (r *Router) invokeSemantic(ctx context.Context, question string) *SourceResult {
	resp, err := r.semantic.Query(ctx, question)
	if err != nil {
		logging.Get(logging.CategoryRouter).Warn("semantic retrieval failed: %v", err)
		return &SourceResult{
			AnswerText:  fmt.Sprintf("Semantic retrieval failed: %v", err),
			Confidence:  0.0,
			StrategyTag: StrategySemantic,
			Err:         err,
		}
	}
	return &SourceResult{
		AnswerText:  resp.AnswerText,
		Confidence:  r.cfg.SemanticConfidence,
		Citations:   resp.Citations,
		StrategyTag: StrategySemantic,
	}
}

// invokeSymbolic runs the fact store collaborator. Zero matches is a
// normal outcome expressed as confidence 0.0 with an explanatory
// answer, not an error. Failures degrade the same way semantic ones do.
func (r *Router) invokeSymbolic(ctx context.Context, question string) *SourceResult {
	records, err := r.symbolic.Query(ctx, question)
	if err != nil {
		logging.Get(logging.CategoryRouter).Warn("symbolic retrieval failed: %v", err)
		return &SourceResult{
			AnswerText:  fmt.Sprintf("Symbolic retrieval failed: %v", err),
			Confidence:  0.0,
			StrategyTag: StrategySymbolic,
			Err:         err,
		}
	}
	if len(records) == 0 {
		return &SourceResult{
			AnswerText: "No specific facts found for this question. " +
				"Try asking about security patterns, performance optimization, monitoring, " +
				"error codes, rate limits, or API endpoints.",
			Confidence:  0.0,
			StrategyTag: StrategySymbolic,
		}
	}
	return &SourceResult{
		AnswerText:  buildSymbolicAnswer(records),
		Confidence:  symbolicHitConfidence,
		Facts:       records,
		StrategyTag: StrategySymbolic,
	}
}

// invokeBoth runs the two collaborators for a hybrid query. The calls
// are independent and each degrades internally, so parallel execution
// only changes latency, never the merge outcome.
func (r *Router) invokeBoth(ctx context.Context, question string) (sym, sem *SourceResult) {
	if !r.cfg.Parallel {
		return r.invokeSymbolic(ctx, question), r.invokeSemantic(ctx, question)
	}
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		sym = r.invokeSymbolic(gctx, question)
		return nil
	})
	g.Go(func() error {
		sem = r.invokeSemantic(gctx, question)
		return nil
	})
	_ = g.Wait()
	return sym, sem
}

// factGroup is a rendering bucket for the symbolic answer.
type factGroup struct {
	heading string
	lines   []string
}

// buildSymbolicAnswer renders matched facts as a markdown answer,
// grouped under a heading per fact kind. Group order follows first
// appearance, and lines within a group keep extraction order.
func buildSymbolicAnswer(records []fact.Record) string {
	groups := make(map[string]*factGroup)
	var order []string

	add := func(heading, line string) {
		g, ok := groups[heading]
		if !ok {
			g = &factGroup{heading: heading}
			groups[heading] = g
			order = append(order, heading)
		}
		g.lines = append(g.lines, line)
	}

	for _, rec := range records {
		switch rec.Category {
		case fact.CategorySecurity:
			add("## Security Patterns and Authentication",
				fmt.Sprintf("• **%s**: %s", rec.FlowType, rec.Pattern))
		case fact.CategoryAuth:
			add("## Security Patterns and Authentication",
				fmt.Sprintf("• **%s**", rec.Pattern))
		case fact.CategoryError:
			add("## Error Codes and Handling",
				fmt.Sprintf("• **%s**: %s", rec.Code, rec.Description))
		case fact.CategoryRateLimit:
			subject := rec.Tier
			if subject == "" {
				subject = rec.Endpoint
			}
			add("## Rate Limiting Information",
				fmt.Sprintf("• **%s**: %s", subject, rec.Limit))
		case fact.CategoryTier:
			add("## Rate Limiting Information",
				fmt.Sprintf("• **%s**: %s", rec.Tier, rec.Description))
		case fact.CategoryEndpoint:
			add("## Available API Endpoints",
				fmt.Sprintf("• **%s %s**", rec.Method, rec.Endpoint))
		case fact.CategoryParameter:
			add("## Available API Endpoints",
				fmt.Sprintf("• **%s** (%s): %s", rec.ParamName, rec.Endpoint, rec.ParamDesc))
		case fact.CategoryPerformance:
			add("## Performance Optimization Patterns",
				fmt.Sprintf("• **%s**: %s", rec.ConceptType, rec.Pattern))
		case fact.CategoryMonitoring:
			add("## Monitoring and Observability",
				fmt.Sprintf("• **%s**: %s", rec.ConceptType, rec.Concept))
		default:
			add("## Documentation Facts", "• "+rec.Summary())
		}
	}

	var b strings.Builder
	for i, heading := range order {
		if i > 0 {
			b.WriteString("\n\n")
		}
		b.WriteString(heading)
		for _, line := range groups[heading].lines {
			b.WriteString("\n")
			b.WriteString(line)
		}
	}
	return b.String()
}
