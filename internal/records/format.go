package records

import (
	"github.com/shopspring/decimal"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

var brPrinter = message.NewPrinter(language.BrazilianPortuguese)

// FormatBRL renders an amount the way the sheets show it, e.g. "R$ 1.234,56".
func FormatBRL(amount decimal.Decimal) string {
	return brPrinter.Sprintf("R$ %.2f", amount.Round(2).InexactFloat64())
}

// FormatPercent renders a percentage with one decimal, e.g. "12,5%".
func FormatPercent(pct float64) string {
	return brPrinter.Sprintf("%.1f%%", pct)
}
