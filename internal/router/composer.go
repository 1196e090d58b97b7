package router

import (
	"fmt"
	"sort"
	"strings"

	"drdoc/internal/config"
	"drdoc/internal/fact"
	"drdoc/internal/semantic"
)

// ComposedResult is the final merged answer returned to the caller. It
// is a pure function of the invoked SourceResults; nothing in it is
// cached or shared across queries.
type ComposedResult struct {
	Answer     string              `json:"answer"`
	Sources    []semantic.Citation `json:"sources"`
	Facts      []fact.Record       `json:"facts"`
	QueryType  Strategy            `json:"query_type"`
	Confidence float64             `json:"confidence"`
	Reasoning  string              `json:"reasoning"`

	// ResponseTime is the end-to-end query latency in seconds.
	ResponseTime float64 `json:"response_time"`
}

// ContradictionPolicy decides whether narrative text contradicts a
// fact-derived answer. When it flags text, the composer suppresses it
// rather than presenting the contradiction to the user.
type ContradictionPolicy interface {
	Contradicts(symbolicAnswer, semanticText string) bool
}

// DenyListPolicy flags contradictions by phrase matching. Phrases are
// always checked against the semantic text; TopicPhrases are checked
// only when their topic keyword appears in the symbolic answer, so a
// denial is suppressed only when it targets something the facts assert.
type DenyListPolicy struct {
	Phrases      []string
	TopicPhrases map[string][]string
}

// DefaultDenyListPolicy returns the stock deny list. It is hand-tuned
// for authentication documentation; callers with other fact domains
// should supply their own policy.
func DefaultDenyListPolicy() *DenyListPolicy {
	return &DenyListPolicy{
		Phrases: []string{
			"does not support oauth", "oauth is not supported", "no oauth flows",
			"does not have oauth", "oauth is not available", "does not mention oauth at all",
		},
		TopicPhrases: map[string][]string{
			"oauth": {"no oauth", "doesn't support oauth", "oauth not supported"},
		},
	}
}

// Contradicts implements ContradictionPolicy.
func (p *DenyListPolicy) Contradicts(symbolicAnswer, semanticText string) bool {
	semLower := strings.ToLower(semanticText)
	for _, phrase := range p.Phrases {
		if strings.Contains(semLower, phrase) {
			return true
		}
	}
	symLower := strings.ToLower(symbolicAnswer)
	for topic, phrases := range p.TopicPhrases {
		if !strings.Contains(symLower, topic) {
			continue
		}
		for _, phrase := range phrases {
			if strings.Contains(semLower, phrase) {
				return true
			}
		}
	}
	return false
}

// Composer merges SourceResults under the confidence-precedence rule:
// facts lead when the fact store is confident and matched something,
// narrative leads otherwise. It never fails; missing sources are
// treated as zero-confidence empties.
type Composer struct {
	cfg    config.RouterConfig
	policy ContradictionPolicy
}

// NewComposer builds a composer. policy may be nil for the default
// deny list.
func NewComposer(cfg config.RouterConfig, policy ContradictionPolicy) *Composer {
	if policy == nil {
		policy = DefaultDenyListPolicy()
	}
	return &Composer{cfg: cfg, policy: policy}
}

// Compose merges the invoked sources into the final result. Either
// source may be nil when its strategy did not invoke it.
func (c *Composer) Compose(strategy Strategy, symbolicRes, semanticRes *SourceResult) ComposedResult {
	symbolicRes = orEmpty(symbolicRes, StrategySymbolic)
	semanticRes = orEmpty(semanticRes, StrategySemantic)

	switch strategy {
	case StrategySemantic:
		return ComposedResult{
			Answer:     c.ensureAnswer(semanticRes.AnswerText),
			Sources:    c.cappedCitations(semanticRes.Citations),
			Facts:      []fact.Record{},
			QueryType:  StrategySemantic,
			Confidence: semanticRes.Confidence,
			Reasoning:  "Used semantic retrieval only",
		}
	case StrategySymbolic:
		return ComposedResult{
			Answer:     c.ensureAnswer(symbolicRes.AnswerText),
			Sources:    []semantic.Citation{},
			Facts:      factsOrEmpty(symbolicRes.Facts),
			QueryType:  StrategySymbolic,
			Confidence: symbolicRes.Confidence,
			Reasoning:  "Used the fact store only",
		}
	default:
		return c.composeHybrid(symbolicRes, semanticRes)
	}
}

func (c *Composer) composeHybrid(symbolicRes, semanticRes *SourceResult) ComposedResult {
	citations := c.cappedCitations(semanticRes.Citations)

	if symbolicRes.Confidence > c.cfg.SymbolicThreshold && len(symbolicRes.Facts) > 0 {
		return ComposedResult{
			Answer:     c.factLedAnswer(symbolicRes, semanticRes, citations),
			Sources:    citations,
			Facts:      symbolicRes.Facts,
			QueryType:  StrategyHybrid,
			Confidence: symbolicRes.Confidence,
			Reasoning: fmt.Sprintf(
				"Combined structured facts (confidence: %.2f) with semantic context (confidence: %.2f); facts are primary",
				symbolicRes.Confidence, semanticRes.Confidence),
		}
	}

	answer := c.ensureAnswer(semanticRes.AnswerText)
	if len(symbolicRes.Facts) > 0 {
		var b strings.Builder
		b.WriteString(answer)
		b.WriteString("\n\n## Additional Facts\n")
		for _, rec := range symbolicRes.Facts {
			b.WriteString("\n• " + rec.Summary())
		}
		answer = b.String()
	}
	return ComposedResult{
		Answer:     answer,
		Sources:    citations,
		Facts:      factsOrEmpty(symbolicRes.Facts),
		QueryType:  StrategyHybrid,
		Confidence: semanticRes.Confidence,
		Reasoning: fmt.Sprintf(
			"Fact store found limited results (confidence: %.2f); used semantic retrieval (confidence: %.2f) as primary",
			symbolicRes.Confidence, semanticRes.Confidence),
	}
}

// factLedAnswer renders a hybrid answer with the symbolic result as
// primary. Semantic text is appended as additional context only when
// it is substantial and does not contradict the facts; contradictory
// text is replaced with a one-line disclaimer rather than included.
func (c *Composer) factLedAnswer(symbolicRes, semanticRes *SourceResult, citations []semantic.Citation) string {
	var b strings.Builder
	b.WriteString(symbolicRes.AnswerText)

	semText := strings.TrimSpace(semanticRes.AnswerText)
	if len(semText) > c.cfg.MinContextChars && semanticRes.Err == nil {
		if c.policy.Contradicts(symbolicRes.AnswerText, semText) {
			b.WriteString("\n\n---\n\n## Information Source\n")
			b.WriteString("The above information is based on structured knowledge base facts. " +
				"For additional context or implementation details, refer to the official documentation.")
		} else {
			b.WriteString("\n\n---\n\n## Additional Context\n")
			b.WriteString(semText)
		}
	}

	if len(citations) > 0 {
		b.WriteString("\n\n---\n\n## Documentation Sources\n")
		b.WriteString("The following documentation files were consulted:\n")
		for i, cit := range citations {
			b.WriteString(fmt.Sprintf("\n**%d. %s** (relevance: %.1f%%)", i+1, cit.Label, cit.Relevance*100))
			if cit.Heading != "" {
				b.WriteString(fmt.Sprintf("\n   Section: %s", cit.Heading))
			}
		}
	}

	if atoms := c.atomCitations(symbolicRes.Facts); len(atoms) > 0 {
		b.WriteString("\n\n### Atom Citations\n")
		for _, line := range atoms {
			b.WriteString("\n" + line)
		}
	}

	return b.String()
}

// cappedCitations sorts semantic citations by relevance descending and
// truncates to the configured maximum. Relevance is the raw similarity
// score, not re-normalized.
func (c *Composer) cappedCitations(citations []semantic.Citation) []semantic.Citation {
	out := make([]semantic.Citation, len(citations))
	copy(out, citations)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Relevance > out[j].Relevance
	})
	if max := c.cfg.MaxSemanticCitations; max > 0 && len(out) > max {
		out = out[:max]
	}
	return out
}

// atomCitations renders fact citations as category-tagged links. Unlike
// document citations these keep extraction order, and entries past the
// cap are dropped without reordering.
func (c *Composer) atomCitations(facts []fact.Record) []string {
	if max := c.cfg.MaxAtomCitations; max > 0 && len(facts) > max {
		facts = facts[:max]
	}
	lines := make([]string, 0, len(facts))
	for _, rec := range facts {
		summary := rec.Summary()
		switch rec.Category {
		case fact.CategoryError:
			lines = append(lines, fmt.Sprintf("• [%s](/documentation#error-codes)", summary))
		case fact.CategoryRateLimit, fact.CategoryTier:
			lines = append(lines, fmt.Sprintf("• [%s](/documentation#rate-limits)", summary))
		case fact.CategoryEndpoint, fact.CategoryParameter:
			lines = append(lines, fmt.Sprintf("• [%s](/documentation#api-reference)", summary))
		default:
			lines = append(lines, "• "+summary)
		}
	}
	return lines
}

// ensureAnswer guarantees a non-empty answer text even when every
// source came back empty.
func (c *Composer) ensureAnswer(answer string) string {
	if strings.TrimSpace(answer) == "" {
		return "No information was found for this question from the available sources."
	}
	return answer
}

func orEmpty(r *SourceResult, tag Strategy) *SourceResult {
	if r == nil {
		return &SourceResult{StrategyTag: tag}
	}
	return r
}

func factsOrEmpty(facts []fact.Record) []fact.Record {
	if facts == nil {
		return []fact.Record{}
	}
	return facts
}
