package symbolic

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"drdoc/internal/fact"
	"drdoc/internal/logging"
)

// KnowledgeBase is the symbolic retrieval collaborator: fact records
// extracted from documentation, held in a Mangle engine, queried by
// keyword-category dispatch. An empty result is the normal "no fact"
// signal, never an error.
type KnowledgeBase struct {
	engine *Engine

	// mu guards the extraction index; the ingest watcher loads records
	// while the server is answering queries.
	mu sync.RWMutex
	// byKey maps a record's dedup key to the full record (with source
	// file) and its extraction sequence. Query results are returned in
	// extraction order.
	byKey map[string]indexedRecord
	next  int
}

type indexedRecord struct {
	record fact.Record
	seq    int
}

// NewKnowledgeBase creates a knowledge base with the default schema.
func NewKnowledgeBase(cfg Config) (*KnowledgeBase, error) {
	engine := NewEngine(cfg)
	if err := engine.LoadSchemaString(DefaultSchema); err != nil {
		return nil, fmt.Errorf("load schema: %w", err)
	}
	return &KnowledgeBase{
		engine: engine,
		byKey:  make(map[string]indexedRecord),
	}, nil
}

// Engine exposes the underlying Mangle engine for raw Datalog queries.
func (kb *KnowledgeBase) Engine() *Engine {
	return kb.engine
}

// LoadRecords inserts fact records into the engine. Records that do not
// map to a declared predicate are skipped.
func (kb *KnowledgeBase) LoadRecords(records []fact.Record) error {
	var facts []Fact
	kb.mu.Lock()
	for _, r := range records {
		f, ok := recordToFact(r)
		if !ok {
			continue
		}
		if _, exists := kb.byKey[r.Key()]; !exists {
			kb.byKey[r.Key()] = indexedRecord{record: r, seq: kb.next}
			kb.next++
		}
		facts = append(facts, f)
	}
	kb.mu.Unlock()
	if err := kb.engine.AddFacts(facts); err != nil {
		return fmt.Errorf("add facts: %w", err)
	}
	logging.Symbolic("loaded %d fact records", len(facts))
	return nil
}

// FactCount returns the number of facts loaded into the engine.
func (kb *KnowledgeBase) FactCount() int {
	return kb.engine.GetStats().TotalFacts
}

// categoryKeywords dispatches question vocabulary to fact predicates.
var categoryKeywords = []struct {
	words      []string
	predicates []string
}{
	{[]string{"oauth", "authentication", "security", "auth"}, []string{"security_flow", "auth_method"}},
	{[]string{"performance", "cache", "optimization", "speed"}, []string{"perf_pattern"}},
	{[]string{"monitoring", "logging", "metrics", "observability"}, []string{"monitor_concept"}},
	{[]string{"error", "exception", "failure", "status"}, []string{"error_code"}},
	{[]string{"rate", "limit", "quota", "throttle", "tier"}, []string{"rate_limit", "tier"}},
	{[]string{"endpoint", "api", "url", "route", "parameter"}, []string{"endpoint", "param"}},
}

// Query returns fact records relevant to the question, in extraction
// order. A question that maps to no category, or a category with no
// facts, yields an empty slice.
func (kb *KnowledgeBase) Query(ctx context.Context, question string) ([]fact.Record, error) {
	timer := logging.StartTimer(logging.CategorySymbolic, "knowledge query")
	defer timer.Stop()

	lower := strings.ToLower(question)
	predicates := make([]string, 0, 4)
	seen := make(map[string]bool)
	for _, entry := range categoryKeywords {
		for _, w := range entry.words {
			if strings.Contains(lower, w) {
				for _, p := range entry.predicates {
					if !seen[p] {
						seen[p] = true
						predicates = append(predicates, p)
					}
				}
				break
			}
		}
	}
	if len(predicates) == 0 {
		return nil, nil
	}

	var indexed []indexedRecord
	for _, predicate := range predicates {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		facts, err := kb.engine.GetFacts(predicate)
		if err != nil {
			return nil, fmt.Errorf("query predicate %s: %w", predicate, err)
		}
		kb.mu.RLock()
		for _, f := range facts {
			r, ok := factToRecord(f)
			if !ok {
				continue
			}
			if ir, exists := kb.byKey[r.Key()]; exists {
				indexed = append(indexed, ir)
			} else {
				// Derived facts have no extraction sequence; they sort last.
				indexed = append(indexed, indexedRecord{record: r, seq: kb.next + len(indexed)})
			}
		}
		kb.mu.RUnlock()
	}

	sort.SliceStable(indexed, func(i, j int) bool { return indexed[i].seq < indexed[j].seq })

	records := make([]fact.Record, len(indexed))
	for i, ir := range indexed {
		records[i] = ir.record
	}
	logging.Symbolic("question matched predicates %v: %d facts", predicates, len(records))
	return records, nil
}

// recordToFact maps a fact record onto its schema predicate.
func recordToFact(r fact.Record) (Fact, bool) {
	switch r.Category {
	case fact.CategoryEndpoint:
		return Fact{Predicate: "endpoint", Args: []interface{}{r.Endpoint, r.Method}}, true
	case fact.CategoryParameter:
		return Fact{Predicate: "param", Args: []interface{}{r.Endpoint, r.ParamName, r.ParamDesc}}, true
	case fact.CategoryError:
		return Fact{Predicate: "error_code", Args: []interface{}{r.Endpoint, r.Code, r.Description}}, true
	case fact.CategoryRateLimit:
		subject := r.Tier
		if subject == "" {
			subject = r.Endpoint
		}
		return Fact{Predicate: "rate_limit", Args: []interface{}{subject, r.Limit}}, true
	case fact.CategoryTier:
		return Fact{Predicate: "tier", Args: []interface{}{r.Tier, r.Description}}, true
	case fact.CategorySecurity:
		return Fact{Predicate: "security_flow", Args: []interface{}{r.FlowType, r.Pattern}}, true
	case fact.CategoryAuth:
		return Fact{Predicate: "auth_method", Args: []interface{}{r.Pattern}}, true
	case fact.CategoryPerformance:
		return Fact{Predicate: "perf_pattern", Args: []interface{}{r.ConceptType, r.Pattern}}, true
	case fact.CategoryMonitoring:
		return Fact{Predicate: "monitor_concept", Args: []interface{}{r.ConceptType, r.Concept}}, true
	default:
		return Fact{}, false
	}
}

// factToRecord is the inverse mapping from an engine fact back to a
// record. Source file attribution is restored by the caller via byKey.
func factToRecord(f Fact) (fact.Record, bool) {
	str := func(i int) string {
		if i >= len(f.Args) {
			return ""
		}
		s, _ := f.Args[i].(string)
		return s
	}

	switch f.Predicate {
	case "endpoint":
		return fact.Record{Category: fact.CategoryEndpoint, Endpoint: str(0), Method: str(1)}, true
	case "param":
		return fact.Record{Category: fact.CategoryParameter, Endpoint: str(0), ParamName: str(1), ParamDesc: str(2)}, true
	case "error_code":
		return fact.Record{Category: fact.CategoryError, Endpoint: str(0), Code: str(1), Description: str(2)}, true
	case "rate_limit":
		r := fact.Record{Category: fact.CategoryRateLimit, Limit: str(1)}
		if strings.HasPrefix(str(0), "/") {
			r.Endpoint = str(0)
		} else {
			r.Tier = str(0)
		}
		return r, true
	case "tier":
		return fact.Record{Category: fact.CategoryTier, Tier: str(0), Description: str(1)}, true
	case "security_flow":
		return fact.Record{Category: fact.CategorySecurity, FlowType: str(0), Pattern: str(1)}, true
	case "auth_method":
		return fact.Record{Category: fact.CategoryAuth, Pattern: str(0)}, true
	case "perf_pattern":
		return fact.Record{Category: fact.CategoryPerformance, ConceptType: str(0), Pattern: str(1)}, true
	case "monitor_concept":
		return fact.Record{Category: fact.CategoryMonitoring, ConceptType: str(0), Concept: str(1)}, true
	default:
		return fact.Record{}, false
	}
}
