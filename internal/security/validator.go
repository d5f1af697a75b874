// Package security screens raw SQL handed to the wrapper and validates
// identifiers that get interpolated into generated statements.
package security

import (
	"fmt"
	"regexp"
	"strings"
)

// Validator screens caller-supplied SQL against known injection shapes.
// Generated SQL never goes through it; identifiers and parameters are
// handled separately.
type Validator struct {
	patterns []*regexp.Regexp
	strict   bool
}

// ValidatorOption configures a Validator.
type ValidatorOption func(*Validator)

// WithStrict adds aggressive patterns that may reject legitimate queries,
// such as any UNION.
func WithStrict(strict bool) ValidatorOption {
	return func(v *Validator) {
		v.strict = strict
	}
}

// NewValidator builds a validator with the default pattern set.
func NewValidator(opts ...ValidatorOption) *Validator {
	v := &Validator{}
	for _, opt := range opts {
		opt(v)
	}
	v.patterns = compilePatterns(dangerousPatterns)
	if v.strict {
		v.patterns = append(v.patterns, compilePatterns(strictPatterns)...)
	}
	return v
}

// dangerousPatterns match constructs that have no place in a single
// parameterized statement. Matching runs on the uppercased query.
var dangerousPatterns = []string{
	// stacked statements
	`;\s*DROP\s+`,
	`;\s*DELETE\s+`,
	`;\s*TRUNCATE\s+`,
	`;\s*ALTER\s+`,
	`;\s*UPDATE\s+`,
	`;\s*INSERT\s+`,

	// comment tricks used to cut off the rest of a statement
	`--[\s]`,
	`/\*.*\*/`,
	`#[\s]`,

	// timing probes
	`PG_SLEEP\s*\(`,
	`BENCHMARK\s*\(`,
	`WAITFOR\s+DELAY`,

	// classic tautologies
	`\s+OR\s+1\s*=\s*1\b`,
	`\s+OR\s+'1'\s*=\s*'1'`,
}

// strictPatterns are only compiled in strict mode.
var strictPatterns = []string{
	`\bUNION\b`,
	`\bEXEC\b`,
	`\bEXECUTE\b`,
	`\bINFORMATION_SCHEMA\b`,
}

// ValidateQuery rejects queries matching a dangerous pattern.
func (v *Validator) ValidateQuery(query string) error {
	normalized := strings.ToUpper(query)
	for _, pattern := range v.patterns {
		if pattern.MatchString(normalized) {
			return fmt.Errorf("query contains unsafe construct (pattern %q)", pattern.String())
		}
	}
	return nil
}

// identRe covers unquoted SQL identifiers accepted by all three supported
// backends.
var identRe = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_$]*$`)

const maxIdentLen = 128

// ValidateIdentifier checks a table or column name that will be quoted
// into generated SQL. One schema qualifier is allowed, as in
// "public.users".
func ValidateIdentifier(name string) error {
	if name == "" {
		return fmt.Errorf("empty identifier")
	}
	if len(name) > maxIdentLen {
		return fmt.Errorf("identifier %q exceeds %d characters", name, maxIdentLen)
	}
	parts := strings.Split(name, ".")
	if len(parts) > 2 {
		return fmt.Errorf("identifier %q has too many qualifiers", name)
	}
	for _, part := range parts {
		if !identRe.MatchString(part) {
			return fmt.Errorf("invalid identifier %q", name)
		}
	}
	return nil
}

func compilePatterns(patterns []string) []*regexp.Regexp {
	compiled := make([]*regexp.Regexp, 0, len(patterns))
	for _, pattern := range patterns {
		re, err := regexp.Compile(pattern)
		if err != nil {
			continue
		}
		compiled = append(compiled, re)
	}
	return compiled
}
