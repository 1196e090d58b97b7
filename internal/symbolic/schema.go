package symbolic

// DefaultSchema declares the predicates used for documentation facts.
// One predicate per fact category, argument order fixed by the fact
// package's record-to-fact mapping.
const DefaultSchema = `
Decl endpoint(Path, Method).
Decl param(Path, Name, Desc).
Decl error_code(Path, Code, Desc).
Decl rate_limit(Subject, Limit).
Decl tier(Name, Desc).
Decl security_flow(Flow, Pattern).
Decl auth_method(Pattern).
Decl perf_pattern(Kind, Pattern).
Decl monitor_concept(Kind, Concept).
`
