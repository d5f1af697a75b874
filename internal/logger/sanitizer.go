package logger

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// Mask replaces sensitive parameter values in log output.
const Mask = "***REDACTED***"

// Sanitizer masks sensitive query parameters before they reach logs or the
// execution log. Placeholders are matched to column names where the SQL shape
// allows it ("col = ?" comparisons and INSERT column lists); when a sensitive
// column appears but some placeholder cannot be attributed to a column, every
// parameter is masked rather than risk leaking a secret.
type Sanitizer struct {
	fields    map[string]struct{}
	fieldsAny *regexp.Regexp
}

var defaultSensitiveFields = []string{
	"password", "passwd", "pwd",
	"token", "api_key", "apikey", "api_token",
	"secret", "auth", "authorization",
	"credit_card", "card_number", "cvv", "cvc",
	"ssn", "social_security",
	"private_key", "priv_key",
}

// NewSanitizer builds a sanitizer for the given sensitive column names. With
// no names, a default set of common secret-bearing columns is used.
func NewSanitizer(sensitiveFields []string) *Sanitizer {
	if len(sensitiveFields) == 0 {
		sensitiveFields = defaultSensitiveFields
	}

	fields := make(map[string]struct{}, len(sensitiveFields))
	quoted := make([]string, 0, len(sensitiveFields))
	for _, f := range sensitiveFields {
		fields[strings.ToLower(f)] = struct{}{}
		quoted = append(quoted, regexp.QuoteMeta(f))
	}

	return &Sanitizer{
		fields:    fields,
		fieldsAny: regexp.MustCompile(`(?i)\b(?:` + strings.Join(quoted, "|") + `)\b`),
	}
}

// placeholderRe matches both "?" and "$N" style placeholders.
var placeholderRe = regexp.MustCompile(`\?|\$\d+`)

// compareRe captures "col <op> <placeholder>" shapes.
var compareRe = regexp.MustCompile(`(?i)([a-zA-Z_][a-zA-Z0-9_]*)\s*(?:=|!=|<>|>=|<=|>|<|\bLIKE\s)\s*(\?|\$\d+)`)

// insertRe captures the column list and value list of a plain INSERT.
var insertRe = regexp.MustCompile(`(?i)INSERT\s+INTO\s+\S+\s*\(([^)]*)\)\s*VALUES\s*\(([^)]*)\)`)

// MaskParams returns a copy of params with values bound to sensitive columns
// replaced by Mask. The original slice is never modified. SQL without any
// sensitive column name passes through untouched.
func (s *Sanitizer) MaskParams(sql string, params []interface{}) []interface{} {
	if len(params) == 0 || !s.fieldsAny.MatchString(sql) {
		return params
	}

	sensitive, complete := s.placeholderSensitivity(sql, len(params))

	masked := make([]interface{}, len(params))
	for i, p := range params {
		if sensitive[i] || !complete {
			masked[i] = Mask
		} else {
			masked[i] = p
		}
	}
	return masked
}

// placeholderSensitivity maps each parameter index to whether it binds a
// sensitive column. complete is false when any parameter could not be
// attributed, which forces the conservative mask-everything path.
func (s *Sanitizer) placeholderSensitivity(sql string, n int) (sensitive []bool, complete bool) {
	sensitive = make([]bool, n)
	attributed := make([]bool, n)

	phLocs := placeholderRe.FindAllStringIndex(sql, -1)

	// indexAt resolves the placeholder starting at a byte offset to its
	// parameter index: numbered placeholders carry it, "?" is positional.
	indexAt := func(start int) (int, bool) {
		for occ, loc := range phLocs {
			if loc[0] != start {
				continue
			}
			tok := sql[loc[0]:loc[1]]
			if strings.HasPrefix(tok, "$") {
				num, err := strconv.Atoi(tok[1:])
				if err != nil || num < 1 || num > n {
					return 0, false
				}
				return num - 1, true
			}
			if occ >= n {
				return 0, false
			}
			return occ, true
		}
		return 0, false
	}

	mark := func(col string, phStart int) {
		idx, ok := indexAt(phStart)
		if !ok {
			return
		}
		attributed[idx] = true
		if s.isSensitive(col) {
			sensitive[idx] = true
		}
	}

	for _, m := range compareRe.FindAllStringSubmatchIndex(sql, -1) {
		mark(sql[m[2]:m[3]], m[4])
	}

	if m := insertRe.FindStringSubmatchIndex(sql); m != nil {
		cols := strings.Split(sql[m[2]:m[3]], ",")
		vals := strings.Split(sql[m[4]:m[5]], ",")
		if len(cols) == len(vals) {
			off := m[4]
			for i, v := range vals {
				for _, loc := range placeholderRe.FindAllStringIndex(v, -1) {
					mark(cols[i], off+loc[0])
				}
				off += len(v) + 1
			}
		}
	}

	complete = true
	for i := 0; i < n; i++ {
		if !attributed[i] {
			complete = false
			break
		}
	}
	return sensitive, complete
}

func (s *Sanitizer) isSensitive(col string) bool {
	col = strings.ToLower(strings.TrimSpace(col))
	col = strings.Trim(col, "`\"")
	_, ok := s.fields[col]
	return ok
}

// FormatParams renders parameters for log output. Mask sensitive values with
// MaskParams first.
func (s *Sanitizer) FormatParams(params []interface{}) string {
	if len(params) == 0 {
		return "[]"
	}

	parts := make([]string, len(params))
	for i, p := range params {
		parts[i] = formatValue(p)
	}
	return "[" + strings.Join(parts, ", ") + "]"
}

// formatValue renders one value, truncating long strings.
func formatValue(v interface{}) string {
	if v == nil {
		return "NULL"
	}

	str := fmt.Sprintf("%v", v)
	const maxLen = 100
	if len(str) > maxLen {
		return str[:maxLen] + "..."
	}
	return str
}
