package records

import (
	"strconv"
	"strings"
	"time"
	"unicode"

	"github.com/shopspring/decimal"
)

// ParseDate parses a Brazilian DD/MM/YYYY date (single digit day and month
// accepted). It returns nil for empty or malformed input, including dates
// that do not exist on the calendar such as 31/02/2024.
func ParseDate(value string, loc *time.Location) *time.Time {
	parts := strings.Split(strings.TrimSpace(value), "/")
	if len(parts) != 3 {
		return nil
	}

	day, err := strconv.Atoi(parts[0])
	if err != nil {
		return nil
	}
	month, err := strconv.Atoi(parts[1])
	if err != nil {
		return nil
	}
	year, err := strconv.Atoi(parts[2])
	if err != nil || len(parts[2]) != 4 {
		return nil
	}

	if loc == nil {
		loc = time.Local
	}
	t := time.Date(year, time.Month(month), day, 0, 0, 0, 0, loc)
	if t.Day() != day || int(t.Month()) != month || t.Year() != year {
		return nil
	}
	return &t
}

// ParseCurrency parses a Brazilian currency cell such as "R$ 1.234,56".
// The currency symbol, thousands separators and spaces are stripped and the
// decimal comma becomes a point. Unparseable input yields zero.
func ParseCurrency(value string) decimal.Decimal {
	cleaned := strings.Map(func(r rune) rune {
		switch {
		case r == 'R', r == '$', r == '.':
			return -1
		case unicode.IsSpace(r):
			return -1
		}
		return r
	}, value)
	cleaned = strings.Replace(cleaned, ",", ".", 1)

	if cleaned == "" {
		return decimal.Zero
	}
	amount, err := decimal.NewFromString(cleaned)
	if err != nil {
		return decimal.Zero
	}
	return amount
}

// ParseInt parses an integer cell, tolerating surrounding spaces.
func ParseInt(value string) (int, error) {
	return strconv.Atoi(strings.TrimSpace(value))
}

// ParseBool reads the Sim/Não flags used throughout the sheets.
func ParseBool(value string, defaultValue bool) bool {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "sim", "s", "true", "1", "ativo":
		return true
	case "não", "nao", "n", "false", "0", "inativo":
		return false
	default:
		return defaultValue
	}
}
