// Package metrics derives portfolio figures from normalized billing records:
// client payment categories, KPI totals, rankings, the composite rating and
// period comparisons. Every function is pure; callers pin "now" so results
// are reproducible.
package metrics

import (
	"time"

	"billing/pkg/models"
)

// Summary is everything a dashboard shows for one filter.
type Summary struct {
	Filter       Filter         `json:"-"`
	KPIs         KPIs           `json:"kpis"`
	Daily        []DailyPoint   `json:"daily"`
	Ranking      Ranking        `json:"ranking"`
	Distribution Distribution   `json:"distribution"`
	Rating       Rating         `json:"rating"`
	Outstanding  []ClientAmount `json:"outstanding"`
	Competences  []string       `json:"competences"`
}

// Engine computes summaries over one dataset snapshot.
type Engine struct {
	records    []models.BillingRecord
	now        time.Time
	rating     RatingConfig
	classifier *Classifier
}

// NewEngine wraps records, which must not be modified afterwards.
func NewEngine(records []models.BillingRecord, now time.Time, rating RatingConfig) *Engine {
	return &Engine{
		records:    records,
		now:        now,
		rating:     rating,
		classifier: NewClassifier(records, now),
	}
}

// Records returns the snapshot.
func (e *Engine) Records() []models.BillingRecord {
	return e.records
}

// Now is the instant the engine classifies against.
func (e *Engine) Now() time.Time {
	return e.now
}

// Classify returns the category of clientName within the snapshot.
func (e *Engine) Classify(clientName string) Category {
	if len(e.records) == 0 {
		return CategoryNA
	}
	return e.classifier.Classify(clientName)
}

// Summarize computes the dashboard figures for f.
func (e *Engine) Summarize(f Filter) Summary {
	filtered := f.Apply(e.records)
	global := f.WithoutLocation().Apply(e.records)
	kpis := ComputeKPIs(filtered, global)

	return Summary{
		Filter:       f,
		KPIs:         kpis,
		Daily:        DailySeries(filtered),
		Ranking:      Rank(filtered),
		Distribution: ScoreDistribution(filtered, e.classifier),
		Rating:       Rate(kpis.ShareOfGlobal, filtered, e.rating),
		Outstanding:  OutstandingByClient(filtered),
		Competences:  CompetencePeriods(e.records),
	}
}

// Compare selects the periods of sel within the snapshot.
func (e *Engine) Compare(sel Selection) (Comparison, error) {
	return Compare(e.records, sel)
}
