package fact

import (
	"regexp"
	"strings"
)

// Extractor pulls structured fact records out of markdown documentation
// using rule-based pattern matching. It is deterministic: the same input
// always yields the same records in the same order.
type Extractor struct {
	endpointRe []*regexp.Regexp
	paramRe    []*regexp.Regexp
	errorRe    []*regexp.Regexp
	rateRe     []*regexp.Regexp
	oauthRe    []*regexp.Regexp
	authRe     []*regexp.Regexp
	cacheRe    []*regexp.Regexp
	dbRe       []*regexp.Regexp
	logRe      []*regexp.Regexp
	metricRe   []*regexp.Regexp
	tierRe     *regexp.Regexp
	seen       map[string]bool
}

var httpEndpointRe = regexp.MustCompile(`(?i)(GET|POST|PUT|DELETE|PATCH)\s+([/\w\-{}]+)`)

// NewExtractor builds an extractor with the default documentation patterns.
func NewExtractor() *Extractor {
	compile := func(patterns ...string) []*regexp.Regexp {
		out := make([]*regexp.Regexp, len(patterns))
		for i, p := range patterns {
			out[i] = regexp.MustCompile(`(?i)` + p)
		}
		return out
	}

	return &Extractor{
		endpointRe: []*regexp.Regexp{httpEndpointRe},
		paramRe: compile(
			"`(\\w+)`\\s*\\([^)]*\\):\\s*([^.\n]+)",
			"`(\\w+)`\\s*\\([^)]*\\)\\s*-\\s*([^.\n]+)",
		),
		errorRe: compile(
			"`?(\\d{3})`?\\s*[|:]\\s*([^|\n]+)",
			"(\\d{3})\\s*-\\s*([^.\n]+)",
		),
		rateRe: compile(
			`(\d+)\s*requests?\s*per\s*(\w+)`,
			`(\d+)\s*req/\s*(\w+)`,
		),
		oauthRe: compile(
			`OAuth 2\.0.*PKCE`,
			`authorization.*code.*flow`,
			`token.*refresh.*pattern`,
			`client.*credentials.*flow`,
		),
		authRe: compile(
			`API.*key.*management`,
			`bearer.*token`,
			`JWT.*token`,
			`signature.*verification`,
		),
		cacheRe: compile(
			`memory.*cache`,
			`redis.*cache`,
			`cache.*invalidation`,
			`cache.*layering`,
		),
		dbRe: compile(
			`database.*query.*optimization`,
			`index.*strategy`,
			`connection.*pooling`,
		),
		logRe: compile(
			`structured.*logging`,
			`log.*aggregation`,
			`correlation.*id`,
		),
		metricRe: compile(
			`performance.*metrics`,
			`alerting.*system`,
			`dashboard.*monitoring`,
		),
		tierRe: regexp.MustCompile(`(?i)(free|pro|enterprise)\s+tier[^:\n]*:?\s*([^.\n]*)`),
		seen:   make(map[string]bool),
	}
}

// Extract returns every fact record found in content. sourceFile is
// recorded on each fact for citation routing. Duplicate statements
// across calls are dropped.
func (e *Extractor) Extract(content, sourceFile string) []Record {
	var records []Record
	add := func(r Record) {
		r.SourceFile = sourceFile
		if key := r.Key(); !e.seen[key] {
			e.seen[key] = true
			records = append(records, r)
		}
	}

	// Endpoints first: error codes and params attach to the nearest
	// preceding endpoint.
	for _, m := range httpEndpointRe.FindAllStringSubmatchIndex(content, -1) {
		method := strings.ToUpper(content[m[2]:m[3]])
		endpoint := cleanEndpoint(content[m[4]:m[5]])
		if endpoint == "" {
			continue
		}
		add(Record{Category: CategoryEndpoint, Endpoint: endpoint, Method: method})
	}

	for _, re := range e.paramRe {
		for _, m := range re.FindAllStringSubmatchIndex(content, -1) {
			endpoint, _ := precedingEndpoint(content, m[0])
			if endpoint == "" {
				continue
			}
			add(Record{
				Category:  CategoryParameter,
				Endpoint:  endpoint,
				ParamName: strings.TrimSpace(content[m[2]:m[3]]),
				ParamDesc: strings.TrimSpace(content[m[4]:m[5]]),
			})
		}
	}

	for _, re := range e.errorRe {
		for _, m := range re.FindAllStringSubmatchIndex(content, -1) {
			code := strings.TrimSpace(content[m[2]:m[3]])
			desc := cleanDescription(content[m[4]:m[5]])
			if !isHTTPStatus(code) || desc == "" {
				continue
			}
			endpoint, _ := precedingEndpoint(content, m[0])
			if endpoint == "" {
				continue
			}
			add(Record{
				Category:    CategoryError,
				Endpoint:    endpoint,
				Code:        code,
				Description: desc,
			})
		}
	}

	for _, re := range e.rateRe {
		for _, m := range re.FindAllStringSubmatchIndex(content, -1) {
			limit := content[m[2]:m[3]] + " per " + normalizePeriod(content[m[4]:m[5]])
			rec := Record{Category: CategoryRateLimit, Limit: limit}
			// Attach to whichever subject was declared last before the
			// match: a tier mention or an endpoint.
			endpoint, endpointPos := precedingEndpoint(content, m[0])
			tier, tierPos := precedingTier(content, m[0])
			switch {
			case tier != "" && tierPos > endpointPos:
				rec.Tier = tier
			case endpoint != "":
				rec.Endpoint = endpoint
			default:
				continue
			}
			add(rec)
		}
	}

	for _, m := range e.tierRe.FindAllStringSubmatch(content, -1) {
		add(Record{
			Category:    CategoryTier,
			Tier:        strings.ToLower(m[1]),
			Description: strings.TrimSpace(m[2]),
		})
	}

	for _, re := range e.oauthRe {
		for _, m := range re.FindAllString(content, -1) {
			flow := strings.ToLower(m)
			add(Record{
				Category: CategorySecurity,
				Pattern:  flow,
				FlowType: classifyOAuthFlow(flow),
			})
		}
	}

	for _, re := range e.authRe {
		for _, m := range re.FindAllString(content, -1) {
			add(Record{Category: CategoryAuth, Pattern: strings.ToLower(m)})
		}
	}

	for _, re := range e.cacheRe {
		for _, m := range re.FindAllString(content, -1) {
			add(Record{Category: CategoryPerformance, ConceptType: "caching", Pattern: strings.ToLower(m)})
		}
	}
	for _, re := range e.dbRe {
		for _, m := range re.FindAllString(content, -1) {
			add(Record{Category: CategoryPerformance, ConceptType: "database", Pattern: strings.ToLower(m)})
		}
	}

	for _, re := range e.logRe {
		for _, m := range re.FindAllString(content, -1) {
			add(Record{Category: CategoryMonitoring, ConceptType: "logging", Concept: strings.ToLower(m)})
		}
	}
	for _, re := range e.metricRe {
		for _, m := range re.FindAllString(content, -1) {
			add(Record{Category: CategoryMonitoring, ConceptType: "metrics", Concept: strings.ToLower(m)})
		}
	}

	return records
}

// cleanEndpoint strips path parameters and trailing slashes.
func cleanEndpoint(endpoint string) string {
	clean := regexp.MustCompile(`\{[^}]+\}`).ReplaceAllString(strings.TrimSpace(endpoint), "")
	clean = strings.TrimSuffix(clean, "/")
	if !strings.HasPrefix(clean, "/") {
		return ""
	}
	return clean
}

// precedingEndpoint finds the nearest endpoint declared before position,
// returning the endpoint and the offset where it was declared.
func precedingEndpoint(content string, position int) (string, int) {
	matches := httpEndpointRe.FindAllStringSubmatchIndex(content[:position], -1)
	if len(matches) == 0 {
		return "", -1
	}
	last := matches[len(matches)-1]
	return cleanEndpoint(content[last[4]:last[5]]), last[0]
}

var tierMentionRe = regexp.MustCompile(`(?i)(free|pro|enterprise)\s+tier`)

func precedingTier(content string, position int) (string, int) {
	matches := tierMentionRe.FindAllStringSubmatchIndex(content[:position], -1)
	if len(matches) == 0 {
		return "", -1
	}
	last := matches[len(matches)-1]
	return strings.ToLower(content[last[2]:last[3]]), last[0]
}

func cleanDescription(desc string) string {
	return strings.TrimSpace(strings.NewReplacer("|", "", "*", "", "`", "").Replace(desc))
}

func isHTTPStatus(code string) bool {
	return len(code) == 3 && code[0] >= '1' && code[0] <= '5'
}

func normalizePeriod(period string) string {
	switch strings.ToLower(period) {
	case "min", "minute", "minutes":
		return "minute"
	case "hour", "hours":
		return "hour"
	case "day", "days":
		return "day"
	default:
		return strings.ToLower(period)
	}
}

func classifyOAuthFlow(pattern string) string {
	switch {
	case strings.Contains(pattern, "pkce"):
		return "pkce"
	case strings.Contains(pattern, "authorization"):
		return "authorization_code"
	case strings.Contains(pattern, "refresh"):
		return "token_refresh"
	case strings.Contains(pattern, "credentials"):
		return "client_credentials"
	default:
		return "oauth2"
	}
}
