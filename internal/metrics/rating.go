package metrics

import (
	"github.com/shopspring/decimal"

	"billing/pkg/models"
)

// GradeNA is the grade of a selection with nothing billed.
const GradeNA = "N/A"

// Band assigns Grade to scores strictly above Above.
type Band struct {
	Above float64
	Grade string
}

// RatingConfig holds the composite rating coefficients. They are empirical
// and meant to be tuned, so nothing outside this type hard-codes them.
type RatingConfig struct {
	ShareWeight   float64
	OverdueWeight float64
	Bands         []Band // checked in order, first match wins
	Fallback      string // grade when no band matches
}

// DefaultRatingConfig is score = share*0.7 - overdue*1.3 graded A..E.
func DefaultRatingConfig() RatingConfig {
	return RatingConfig{
		ShareWeight:   0.7,
		OverdueWeight: 1.3,
		Bands: []Band{
			{Above: 60, Grade: "A"},
			{Above: 40, Grade: "B"},
			{Above: 20, Grade: "C"},
			{Above: 0, Grade: "D"},
		},
		Fallback: "E",
	}
}

// Rating is the composite performance grade of a selection.
type Rating struct {
	Score      float64 `json:"score"`
	Grade      string  `json:"grade"`
	OverduePct float64 `json:"overdue_pct"`
}

// Rate grades filtered given its share of the global total (percent).
// Overdue is the balance due on late and open titles over the total billed.
func Rate(shareOfGlobal float64, filtered []models.BillingRecord, cfg RatingConfig) Rating {
	total := sumInvoiced(filtered)
	if total.IsZero() {
		return Rating{Grade: GradeNA}
	}

	overdue := decimal.Zero
	for i := range filtered {
		if filtered[i].IsOverdue() {
			overdue = overdue.Add(filtered[i].AmountDue)
		}
	}
	overduePct := percentOf(overdue, total)

	score := shareOfGlobal*cfg.ShareWeight - overduePct*cfg.OverdueWeight
	return Rating{
		Score:      score,
		Grade:      cfg.grade(score),
		OverduePct: overduePct,
	}
}

func (cfg RatingConfig) grade(score float64) string {
	for _, b := range cfg.Bands {
		if score > b.Above {
			return b.Grade
		}
	}
	return cfg.Fallback
}
