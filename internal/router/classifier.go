// Package router implements the hybrid query router: a classifier that
// assigns a retrieval strategy to each question, dual invocation of the
// semantic and symbolic retrieval collaborators, and a composer that
// merges their results under a confidence-precedence rule.
package router

import (
	"fmt"
	"regexp"
	"strings"
)

// Strategy selects which retrieval sources answer a question.
type Strategy string

const (
	// StrategyAuto lets the classifier decide.
	StrategyAuto Strategy = "auto"

	// StrategySemantic uses vector retrieval only.
	StrategySemantic Strategy = "semantic"

	// StrategySymbolic uses the fact store only.
	StrategySymbolic Strategy = "symbolic"

	// StrategyHybrid invokes both sources and merges.
	StrategyHybrid Strategy = "hybrid"
)

// ParseStrategy validates a caller-supplied strategy string. Unknown
// strings are rejected rather than defaulted: a malformed strategy is
// caller error, not a routing decision.
func ParseStrategy(s string) (Strategy, error) {
	switch Strategy(strings.ToLower(strings.TrimSpace(s))) {
	case StrategyAuto, "":
		return StrategyAuto, nil
	case StrategySemantic:
		return StrategySemantic, nil
	case StrategySymbolic:
		return StrategySymbolic, nil
	case StrategyHybrid:
		return StrategyHybrid, nil
	default:
		return "", fmt.Errorf("invalid strategy %q (want auto, semantic, symbolic, or hybrid)", s)
	}
}

// DefaultFactPatterns are the fact-intent patterns the classifier ships
// with. A question matching any of them benefits from precise facts in
// addition to narrative context, so a match routes to Hybrid.
var DefaultFactPatterns = []string{
	`what.*error.*code`,
	`what.*rate.*limit`,
	`what.*parameters`,
	`list.*endpoints`,
	`what.*tier`,
	`how.*many.*requests`,
	`what.*authentication`,
	`what.*endpoint.*supports`,
	`what.*status.*code`,
	`what.*slippage`,
	`what.*gas`,
	`what.*fee`,
}

// Classifier assigns a retrieval strategy to a question by testing it
// against an ordered list of fact-intent patterns. It never fails:
// every question gets a strategy, defaulting to Semantic.
type Classifier struct {
	patterns        []*regexp.Regexp
	symbolicEnabled bool
}

// NewClassifier compiles the given fact-intent patterns. Patterns are
// matched against the lower-cased question; list order does not affect
// the outcome since any match yields the same strategy.
func NewClassifier(patterns []string, symbolicEnabled bool) (*Classifier, error) {
	compiled := make([]*regexp.Regexp, 0, len(patterns))
	for _, p := range patterns {
		re, err := regexp.Compile(p)
		if err != nil {
			return nil, fmt.Errorf("compile fact pattern %q: %w", p, err)
		}
		compiled = append(compiled, re)
	}
	return &Classifier{patterns: compiled, symbolicEnabled: symbolicEnabled}, nil
}

// Classify returns the strategy for a question. Fact-like questions go
// Hybrid when the symbolic source is enabled: precise facts and
// narrative context complement each other, so a fact match triggers
// both sources rather than the fact store alone. Everything else, and
// every fact match while the symbolic source is disabled, goes
// Semantic.
func (c *Classifier) Classify(question string) Strategy {
	lower := strings.ToLower(question)
	for _, re := range c.patterns {
		if re.MatchString(lower) {
			if c.symbolicEnabled {
				return StrategyHybrid
			}
			return StrategySemantic
		}
	}
	return StrategySemantic
}
