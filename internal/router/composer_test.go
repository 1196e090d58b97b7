package router

import (
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"drdoc/internal/config"
	"drdoc/internal/fact"
	"drdoc/internal/semantic"
)

func testComposer(t *testing.T) *Composer {
	t.Helper()
	return NewComposer(config.DefaultConfig().Router, nil)
}

func oauthSymbolicResult() *SourceResult {
	return &SourceResult{
		AnswerText: "## Security Patterns and Authentication\n• **authorization_code**: OAuth 2.0 authorization code flow",
		Confidence: 0.9,
		Facts: []fact.Record{
			{Category: fact.CategorySecurity, FlowType: "authorization_code", Pattern: "OAuth 2.0 authorization code flow"},
		},
		StrategyTag: StrategySymbolic,
	}
}

func longSemanticResult() *SourceResult {
	return &SourceResult{
		AnswerText: strings.Repeat("OAuth 2.0 flows let clients obtain scoped access tokens. ", 5)[:250],
		Confidence: 0.8,
		Citations: []semantic.Citation{
			{Label: "auth.md", Heading: "OAuth", Relevance: 0.91},
			{Label: "security.md", Relevance: 0.74},
		},
		StrategyTag: StrategySemantic,
	}
}

func TestComposeHybridFactLed(t *testing.T) {
	c := testComposer(t)
	symRes := oauthSymbolicResult()
	semRes := longSemanticResult()

	result := c.Compose(StrategyHybrid, symRes, semRes)

	if result.Confidence != 0.9 {
		t.Errorf("Confidence = %v, want symbolic 0.9", result.Confidence)
	}
	if !strings.Contains(result.Answer, "authorization_code") {
		t.Error("answer missing symbolic fact text")
	}
	if !strings.Contains(result.Answer, "## Additional Context") {
		t.Error("answer missing Additional Context section")
	}
	if !strings.Contains(result.Answer, semRes.AnswerText) {
		t.Error("answer missing semantic text under Additional Context")
	}
	if len(result.Sources) != 2 {
		t.Errorf("Sources = %d citations, want 2", len(result.Sources))
	}
	if !strings.Contains(result.Reasoning, "0.90") || !strings.Contains(result.Reasoning, "0.80") {
		t.Errorf("reasoning must name both confidences, got %q", result.Reasoning)
	}
}

func TestComposeHybridSemanticLedWhenNoFacts(t *testing.T) {
	c := testComposer(t)
	symRes := &SourceResult{
		AnswerText:  "No specific facts found for this question.",
		Confidence:  0.0,
		StrategyTag: StrategySymbolic,
	}
	semRes := &SourceResult{
		AnswerText:  "Rate limits are 60 requests per minute on the free tier and 600 on the pro tier.",
		Confidence:  0.8,
		StrategyTag: StrategySemantic,
	}

	result := c.Compose(StrategyHybrid, symRes, semRes)

	if result.Confidence != 0.8 {
		t.Errorf("Confidence = %v, want semantic 0.8", result.Confidence)
	}
	if result.Answer != semRes.AnswerText {
		t.Errorf("answer must equal semantic answer verbatim, got %q", result.Answer)
	}
	if strings.Contains(result.Answer, "Additional Facts") {
		t.Error("answer must not contain an Additional Facts section when no facts matched")
	}
}

func TestComposeHybridLowConfidenceFactsAppended(t *testing.T) {
	c := testComposer(t)
	symRes := &SourceResult{
		AnswerText: "## Rate Limiting Information\n• **free**: 60 per minute",
		Confidence: 0.4,
		Facts: []fact.Record{
			{Category: fact.CategoryRateLimit, Tier: "free", Limit: "60 per minute"},
		},
		StrategyTag: StrategySymbolic,
	}
	semRes := &SourceResult{
		AnswerText:  "The API throttles aggressive clients.",
		Confidence:  0.8,
		StrategyTag: StrategySemantic,
	}

	result := c.Compose(StrategyHybrid, symRes, semRes)

	if result.Confidence != 0.8 {
		t.Errorf("Confidence = %v, want semantic 0.8 when symbolic below threshold", result.Confidence)
	}
	if !strings.Contains(result.Answer, "## Additional Facts") {
		t.Error("below-threshold facts should be appended under Additional Facts")
	}
	if !strings.Contains(result.Answer, "Rate limit (free): 60 per minute") {
		t.Errorf("Additional Facts missing fact summary, got %q", result.Answer)
	}
}

func TestComposeContradictionSuppressed(t *testing.T) {
	c := testComposer(t)
	symRes := oauthSymbolicResult()
	semRes := &SourceResult{
		AnswerText: "This API does not support OAuth at all. " +
			strings.Repeat("Clients authenticate with static API keys instead. ", 3),
		Confidence:  0.8,
		StrategyTag: StrategySemantic,
	}

	result := c.Compose(StrategyHybrid, symRes, semRes)

	if strings.Contains(result.Answer, semRes.AnswerText) {
		t.Error("contradictory semantic text must not appear verbatim")
	}
	if !strings.Contains(result.Answer, "## Information Source") {
		t.Error("suppressed context should be replaced by the Information Source disclaimer")
	}
	if result.Confidence != 0.9 {
		t.Errorf("Confidence = %v, want symbolic 0.9", result.Confidence)
	}
}

func TestComposeShortSemanticTextOmitted(t *testing.T) {
	c := testComposer(t)
	symRes := oauthSymbolicResult()
	semRes := &SourceResult{
		AnswerText:  "OAuth works.",
		Confidence:  0.8,
		StrategyTag: StrategySemantic,
	}

	result := c.Compose(StrategyHybrid, symRes, semRes)

	if strings.Contains(result.Answer, "## Additional Context") {
		t.Error("trivial semantic text must not produce an Additional Context section")
	}
}

func TestComposeIdempotent(t *testing.T) {
	c := testComposer(t)
	symRes := oauthSymbolicResult()
	semRes := longSemanticResult()

	first := c.Compose(StrategyHybrid, symRes, semRes)
	second := c.Compose(StrategyHybrid, symRes, semRes)
	first.ResponseTime, second.ResponseTime = 0, 0

	if diff := cmp.Diff(first, second); diff != "" {
		t.Errorf("Compose not idempotent (-first +second):\n%s", diff)
	}
}

func TestComposeCitationCapAndOrdering(t *testing.T) {
	cfg := config.DefaultConfig().Router
	cfg.MaxSemanticCitations = 3
	c := NewComposer(cfg, nil)

	semRes := &SourceResult{
		AnswerText: strings.Repeat("Detailed narrative about endpoints. ", 5),
		Confidence: 0.8,
		Citations: []semantic.Citation{
			{Label: "a.md", Relevance: 0.4},
			{Label: "b.md", Relevance: 0.9},
			{Label: "c.md", Relevance: 0.7},
			{Label: "d.md", Relevance: 0.8},
			{Label: "e.md", Relevance: 0.1},
		},
		StrategyTag: StrategySemantic,
	}

	result := c.Compose(StrategyHybrid, oauthSymbolicResult(), semRes)

	if len(result.Sources) != 3 {
		t.Fatalf("Sources = %d, want cap of 3", len(result.Sources))
	}
	for i := 1; i < len(result.Sources); i++ {
		if result.Sources[i].Relevance > result.Sources[i-1].Relevance {
			t.Error("semantic citations must be non-increasing in relevance")
		}
	}
	if result.Sources[0].Label != "b.md" {
		t.Errorf("top citation = %s, want b.md", result.Sources[0].Label)
	}
}

// Atom citations keep extraction order and cap without reordering,
// while document citations are relevance-ordered. The asymmetry is
// intentional and pinned here.
func TestComposeAtomCitationsExtractionOrder(t *testing.T) {
	cfg := config.DefaultConfig().Router
	cfg.MaxAtomCitations = 3
	c := NewComposer(cfg, nil)

	symRes := &SourceResult{
		AnswerText: "## Error Codes and Handling\n• **400**: Bad request",
		Confidence: 0.9,
		Facts: []fact.Record{
			{Category: fact.CategoryError, Code: "400", Description: "Bad request"},
			{Category: fact.CategoryRateLimit, Tier: "free", Limit: "60 per minute"},
			{Category: fact.CategoryEndpoint, Method: "GET", Endpoint: "/v1/status"},
			{Category: fact.CategoryError, Code: "500", Description: "Server error"},
		},
		StrategyTag: StrategySymbolic,
	}

	result := c.Compose(StrategyHybrid, symRes, &SourceResult{StrategyTag: StrategySemantic})

	if !strings.Contains(result.Answer, "### Atom Citations") {
		t.Fatal("answer missing Atom Citations section")
	}
	first := strings.Index(result.Answer, "/documentation#error-codes")
	second := strings.Index(result.Answer, "/documentation#rate-limits")
	third := strings.Index(result.Answer, "/documentation#api-reference")
	if first == -1 || second == -1 || third == -1 {
		t.Fatalf("atom citations missing category links:\n%s", result.Answer)
	}
	if !(first < second && second < third) {
		t.Error("atom citations must keep extraction order")
	}
	if strings.Contains(result.Answer, "Error code 500") {
		t.Error("atom citations past the cap must be dropped")
	}
}

func TestComposeNilSourcesNeverPanics(t *testing.T) {
	c := testComposer(t)

	result := c.Compose(StrategyHybrid, nil, nil)

	if result.Confidence != 0 {
		t.Errorf("Confidence = %v, want 0", result.Confidence)
	}
	if strings.TrimSpace(result.Answer) == "" {
		t.Error("answer must be non-empty even with no sources")
	}
	if result.Facts == nil || result.Sources == nil {
		t.Error("Facts and Sources must be empty slices, not nil")
	}
}

func TestDenyListPolicyTopicGating(t *testing.T) {
	p := DefaultDenyListPolicy()

	if !p.Contradicts("OAuth flows supported: authorization_code", "the service has no oauth support") {
		t.Error("topic phrase should flag when symbolic answer mentions the topic")
	}
	if p.Contradicts("Rate limit (free): 60 per minute", "the service has no oauth support") {
		t.Error("topic phrase must not flag when symbolic answer is about another topic")
	}
	if !p.Contradicts("anything", "this API does not support oauth") {
		t.Error("global deny phrases apply regardless of topic")
	}
}
