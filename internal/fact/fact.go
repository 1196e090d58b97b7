// Package fact defines the structured fact records extracted from API
// documentation and stored in the symbolic knowledge base. Each record
// carries a category plus the optional fields that category uses, so
// consumers switch on Category instead of probing loosely typed maps.
package fact

import (
	"fmt"
	"strings"
)

// Category classifies a fact record by the kind of documentation
// statement it was extracted from.
type Category string

const (
	CategorySecurity    Category = "security"
	CategoryPerformance Category = "performance"
	CategoryMonitoring  Category = "monitoring"
	CategoryAPI         Category = "api"
	CategoryError       Category = "error"
	CategoryRateLimit   Category = "rate_limit"
	CategoryEndpoint    Category = "endpoint"
	CategoryParameter   Category = "parameter"
	CategoryTier        Category = "tier"
	CategoryAuth        Category = "auth"
)

// Valid reports whether c is a known category.
func (c Category) Valid() bool {
	switch c {
	case CategorySecurity, CategoryPerformance, CategoryMonitoring,
		CategoryAPI, CategoryError, CategoryRateLimit, CategoryEndpoint,
		CategoryParameter, CategoryTier, CategoryAuth:
		return true
	}
	return false
}

// Record is one extracted fact. Only the fields relevant to its
// Category are populated; the rest stay zero.
type Record struct {
	Category Category `json:"category"`

	// Endpoint facts
	Endpoint string `json:"endpoint,omitempty"`
	Method   string `json:"method,omitempty"`

	// Parameter facts
	ParamName string `json:"param_name,omitempty"`
	ParamDesc string `json:"param_desc,omitempty"`

	// Error facts
	Code        string `json:"code,omitempty"`
	Description string `json:"description,omitempty"`

	// Rate limit / tier facts
	Tier  string `json:"tier,omitempty"`
	Limit string `json:"limit,omitempty"`

	// Security facts
	Pattern  string `json:"pattern,omitempty"`
	FlowType string `json:"flow_type,omitempty"`

	// Monitoring facts
	ConceptType string `json:"concept_type,omitempty"`
	Concept     string `json:"concept,omitempty"`

	// Source document the fact was extracted from.
	SourceFile string `json:"source_file,omitempty"`
}

// Summary renders a one-line human-readable form of the record,
// used for fact listings and atom citations.
func (r Record) Summary() string {
	switch r.Category {
	case CategoryEndpoint:
		if r.Method != "" {
			return fmt.Sprintf("API endpoint: %s %s", r.Method, r.Endpoint)
		}
		return fmt.Sprintf("API endpoint: %s", r.Endpoint)
	case CategoryParameter:
		return fmt.Sprintf("Parameter %s on %s: %s", r.ParamName, r.Endpoint, r.ParamDesc)
	case CategoryError:
		return fmt.Sprintf("Error code %s: %s", r.Code, r.Description)
	case CategoryRateLimit:
		if r.Tier != "" {
			return fmt.Sprintf("Rate limit (%s): %s", r.Tier, r.Limit)
		}
		return fmt.Sprintf("Rate limit for %s: %s", r.Endpoint, r.Limit)
	case CategoryTier:
		return fmt.Sprintf("Tier %s: %s", r.Tier, r.Description)
	case CategorySecurity:
		if r.FlowType != "" {
			return fmt.Sprintf("Security flow %s: %s", r.FlowType, r.Pattern)
		}
		return fmt.Sprintf("Security pattern: %s", r.Pattern)
	case CategoryAuth:
		return fmt.Sprintf("Authentication method: %s", r.Pattern)
	case CategoryPerformance:
		return fmt.Sprintf("Performance pattern (%s): %s", r.ConceptType, r.Pattern)
	case CategoryMonitoring:
		return fmt.Sprintf("Monitoring concept (%s): %s", r.ConceptType, r.Concept)
	case CategoryAPI:
		return fmt.Sprintf("API fact: %s", r.Description)
	default:
		return fmt.Sprintf("%s fact", r.Category)
	}
}

// Key returns a deduplication key for the record. Two records with
// the same key describe the same documentation statement.
func (r Record) Key() string {
	parts := []string{string(r.Category), r.Endpoint, r.Method, r.ParamName,
		r.Code, r.Tier, r.Limit, r.Pattern, r.FlowType, r.Concept}
	return strings.ToLower(strings.Join(parts, "|"))
}
