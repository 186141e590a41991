package util

import (
	"strconv"
	"strings"
	"time"
	"unicode"
)

func NowISO() string {
	return time.Now().Format(time.RFC3339)
}

// NormalizeBoolPL accepts the yes/no spellings operators type into forms and
// spreadsheets.
func NormalizeBoolPL(s string) bool {
	s = strings.TrimSpace(strings.ToLower(s))
	switch s {
	case "tak", "yes", "true", "1", "y", "t", "on":
		return true
	default:
		return false
	}
}

// AtoiOrZero parses the leading integer of s, so "3.7" is 3 and "12abc" is
// 12. Input without a leading integer becomes 0.
func AtoiOrZero(s string) int {
	s = strings.TrimSpace(s)
	end := 0
	if end < len(s) && (s[end] == '-' || s[end] == '+') {
		end++
	}
	digits := end
	for end < len(s) && s[end] >= '0' && s[end] <= '9' {
		end++
	}
	if end == digits {
		return 0
	}
	v, err := strconv.Atoi(s[:end])
	if err != nil {
		return 0
	}
	return v
}

// SplitList splits a comma separated list, trimming entries and dropping
// empty ones and repeats. Order of first occurrence is kept.
func SplitList(raw string) []string {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	seen := map[string]bool{}
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" || seen[p] {
			continue
		}
		seen[p] = true
		out = append(out, p)
	}
	return out
}

// Underscored replaces every whitespace run with a single underscore.
func Underscored(s string) string {
	return strings.Join(strings.FieldsFunc(s, unicode.IsSpace), "_")
}

// FormatDatePL renders a YYYY-MM-DD date as DD.MM.YYYY; unparsable input is
// returned as is.
func FormatDatePL(date string) string {
	t, err := time.Parse("2006-01-02", date)
	if err != nil {
		return date
	}
	return t.Format("02.01.2006")
}

func EscapeCSV(s string) string {
	if strings.ContainsAny(s, ",\"\n\r") {
		return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
	}
	return s
}
