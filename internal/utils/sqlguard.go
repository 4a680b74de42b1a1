package utils

import "regexp"

// sqlInjectionPattern matches the usual injection probes: statement chaining,
// comment sequences, tautologies and UNION based reads.
var sqlInjectionPattern = regexp.MustCompile(`(?i)(--|/\*|\*/|;\s*(drop|delete|insert|update|alter|create|truncate|exec)\b|\bunion\b\s+(all\s+)?\bselect\b|'\s*or\s+'?\d*'?\s*=\s*'?\d*|\bor\s+1\s*=\s*1\b|\bxp_\w+|\bsleep\s*\(|\bbenchmark\s*\()`)

// ContainsSQLInjection reports whether s looks like an SQL injection attempt.
// Queries are parameterised anyway; this rejects obvious probes early with a 400.
func ContainsSQLInjection(s string) bool {
	if s == "" {
		return false
	}
	return sqlInjectionPattern.MatchString(s)
}
