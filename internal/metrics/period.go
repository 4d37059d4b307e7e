package metrics

import (
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"billing/pkg/models"
)

// Mode selects how periods are defined.
type Mode string

const (
	ModeCompetence Mode = "competence"
	ModeDateRange  Mode = "date-range"
)

var (
	// ErrInvalidPeriod is returned for a malformed competence or date range.
	ErrInvalidPeriod = errors.New("invalid period")

	// ErrUnknownPeriod is returned when the selected competence has no records.
	ErrUnknownPeriod = errors.New("competence period not present in dataset")
)

// Selection is the period (and optional location) a comparison is made for.
type Selection struct {
	Mode       Mode
	Location   string
	Competence string    // ModeCompetence, MM/YYYY
	From       time.Time // ModeDateRange
	To         time.Time // ModeDateRange, inclusive
}

// Comparison is the current period and the one it is compared against.
type Comparison struct {
	CurrentLabel  string                 `json:"current_label"`
	PreviousLabel string                 `json:"previous_label"`
	HasPrevious   bool                   `json:"has_previous"`
	Current       []models.BillingRecord `json:"-"`
	Previous      []models.BillingRecord `json:"-"`

	CurrentFilter  Filter `json:"-"`
	PreviousFilter Filter `json:"-"`
}

type competence struct {
	key         string
	year, month int
}

// ParseCompetence splits "MM/YYYY". A single digit month is accepted.
func ParseCompetence(value string) (year, month int, err error) {
	parts := strings.Split(strings.TrimSpace(value), "/")
	if len(parts) != 2 || !isDigits(parts[0]) || !isDigits(parts[1]) {
		return 0, 0, fmt.Errorf("%w: competence %q", ErrInvalidPeriod, value)
	}
	month, err = strconv.Atoi(parts[0])
	if err != nil || len(parts[0]) > 2 || month < 1 || month > 12 {
		return 0, 0, fmt.Errorf("%w: competence %q", ErrInvalidPeriod, value)
	}
	year, err = strconv.Atoi(parts[1])
	if err != nil || len(parts[1]) != 4 {
		return 0, 0, fmt.Errorf("%w: competence %q", ErrInvalidPeriod, value)
	}
	return year, month, nil
}

// NormalizeCompetence rewrites value in the "MM/YYYY" form the sheet uses,
// so "3/2024" selects the same records as "03/2024".
func NormalizeCompetence(value string) (string, error) {
	year, month, err := ParseCompetence(value)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%02d/%04d", month, year), nil
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, c := range s {
		if c < '0' || c > '9' {
			return false
		}
	}
	return true
}

// CompetencePeriods lists the distinct well-formed competence periods of
// records, most recent first.
func CompetencePeriods(records []models.BillingRecord) []string {
	seen := make(map[string]bool)
	var periods []competence
	for i := range records {
		key := records[i].CompetencePeriod
		if seen[key] {
			continue
		}
		seen[key] = true
		y, m, err := ParseCompetence(key)
		if err != nil {
			continue
		}
		periods = append(periods, competence{key: key, year: y, month: m})
	}

	sort.Slice(periods, func(i, j int) bool {
		if periods[i].year != periods[j].year {
			return periods[i].year > periods[j].year
		}
		return periods[i].month > periods[j].month
	})

	out := make([]string, len(periods))
	for i, p := range periods {
		out[i] = p.key
	}
	return out
}

// PreviousCompetence is the entry after selected in the descending period
// list, which skips months without records.
func PreviousCompetence(periods []string, selected string) (string, bool) {
	for i, p := range periods {
		if p == selected && i+1 < len(periods) {
			return periods[i+1], true
		}
	}
	return "", false
}

// Compare selects the current period's records and those of the previous
// comparable period. It performs no aggregation.
func Compare(records []models.BillingRecord, sel Selection) (Comparison, error) {
	switch sel.Mode {
	case ModeCompetence:
		return compareCompetence(records, sel)
	case ModeDateRange:
		return compareDateRange(records, sel)
	default:
		return Comparison{}, fmt.Errorf("%w: unknown mode %q", ErrInvalidPeriod, sel.Mode)
	}
}

// ParseSelection builds a selection from request input. A competence wins
// over a date range (YYYY-MM-DD, both ends required). Range dates are
// midnights in tz, the zone the sheet dates are read in; nil means
// time.Local. It reports false when neither is given, in which case the view
// covers the whole snapshot.
func ParseSelection(location, competence, from, to string, tz *time.Location) (Selection, bool, error) {
	if tz == nil {
		tz = time.Local
	}
	competence, from, to = strings.TrimSpace(competence), strings.TrimSpace(from), strings.TrimSpace(to)
	switch {
	case competence != "":
		normalized, err := NormalizeCompetence(competence)
		if err != nil {
			return Selection{}, false, err
		}
		return Selection{Mode: ModeCompetence, Location: location, Competence: normalized}, true, nil
	case from != "" || to != "":
		start, err := time.ParseInLocation("2006-01-02", from, tz)
		if err != nil {
			return Selection{}, false, fmt.Errorf("%w: from %q", ErrInvalidPeriod, from)
		}
		end, err := time.ParseInLocation("2006-01-02", to, tz)
		if err != nil {
			return Selection{}, false, fmt.Errorf("%w: to %q", ErrInvalidPeriod, to)
		}
		if end.Before(start) {
			return Selection{}, false, fmt.Errorf("%w: %s is before %s", ErrInvalidPeriod, to, from)
		}
		return Selection{Mode: ModeDateRange, Location: location, From: start, To: end}, true, nil
	default:
		return Selection{Location: location}, false, nil
	}
}

// Filter is the filter of the selected (current) period.
func (s Selection) Filter() Filter {
	f := Filter{Location: s.Location}
	switch s.Mode {
	case ModeCompetence:
		f.Competence = s.Competence
	case ModeDateRange:
		from, to := s.From, s.To
		f.From, f.To = &from, &to
	}
	return f
}

func compareCompetence(records []models.BillingRecord, sel Selection) (Comparison, error) {
	if _, _, err := ParseCompetence(sel.Competence); err != nil {
		return Comparison{}, err
	}

	periods := CompetencePeriods(records)
	found := false
	for _, p := range periods {
		if p == sel.Competence {
			found = true
			break
		}
	}
	if !found {
		return Comparison{}, fmt.Errorf("%w: %s", ErrUnknownPeriod, sel.Competence)
	}

	cur := Filter{Location: sel.Location, Competence: sel.Competence}
	cmp := Comparison{
		CurrentLabel:  sel.Competence,
		Current:       cur.Apply(records),
		CurrentFilter: cur,
	}

	if prev, ok := PreviousCompetence(periods, sel.Competence); ok {
		pf := Filter{Location: sel.Location, Competence: prev}
		cmp.HasPrevious = true
		cmp.PreviousLabel = prev
		cmp.Previous = pf.Apply(records)
		cmp.PreviousFilter = pf
	}
	return cmp, nil
}

func compareDateRange(records []models.BillingRecord, sel Selection) (Comparison, error) {
	if sel.From.IsZero() || sel.To.IsZero() || sel.To.Before(sel.From) {
		return Comparison{}, fmt.Errorf("%w: date range %s..%s", ErrInvalidPeriod,
			sel.From.Format("2006-01-02"), sel.To.Format("2006-01-02"))
	}

	from, to := sel.From, sel.To
	cur := Filter{Location: sel.Location, From: &from, To: &to}

	prevFrom, prevTo := PreviousMonth(sel.From)
	prev := Filter{Location: sel.Location, From: &prevFrom, To: &prevTo}

	return Comparison{
		CurrentLabel:   from.Format("02/01/2006") + " - " + to.Format("02/01/2006"),
		PreviousLabel:  prevFrom.Format("01/2006"),
		HasPrevious:    true,
		Current:        cur.Apply(records),
		Previous:       prev.Apply(records),
		CurrentFilter:  cur,
		PreviousFilter: prev,
	}, nil
}

// PreviousMonth returns the first and last day of the calendar month before
// the one containing t.
func PreviousMonth(t time.Time) (first, last time.Time) {
	startOfMonth := time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, t.Location())
	first = startOfMonth.AddDate(0, -1, 0)
	last = startOfMonth.AddDate(0, 0, -1)
	return first, last
}

// Delta is the change of one total between two periods.
type Delta struct {
	Previous  decimal.Decimal `json:"previous"`
	Current   decimal.Decimal `json:"current"`
	Change    decimal.Decimal `json:"change"`
	ChangePct *float64        `json:"change_pct,omitempty"` // nil when previous is zero
	Count     [2]int          `json:"count"`              // previous, current
}

// PeriodDiff compares the headline totals of a Comparison.
type PeriodDiff struct {
	CurrentLabel  string `json:"current_label"`
	PreviousLabel string `json:"previous_label"`
	Storage       Delta  `json:"storage"`
	Rental        Delta  `json:"rental"`
	Total         Delta  `json:"total"`
	AmountDue     Delta  `json:"amount_due"`
}

// Diff computes per revenue type changes between the periods of cmp.
func Diff(cmp Comparison) PeriodDiff {
	cur := ComputeKPIs(cmp.Current, nil)
	prev := ComputeKPIs(cmp.Previous, nil)

	return PeriodDiff{
		CurrentLabel:  cmp.CurrentLabel,
		PreviousLabel: cmp.PreviousLabel,
		Storage:       newDelta(prev.Storage, cur.Storage),
		Rental:        newDelta(prev.Rental, cur.Rental),
		Total:         newDelta(prev.Total, cur.Total),
		AmountDue:     newDelta(dueBucket(cmp.Previous), dueBucket(cmp.Current)),
	}
}

func newDelta(prev, cur Bucket) Delta {
	d := Delta{
		Previous: prev.Amount,
		Current:  cur.Amount,
		Change:   cur.Amount.Sub(prev.Amount),
		Count:    [2]int{prev.Count, cur.Count},
	}
	if !prev.Amount.IsZero() {
		pct := percentOf(d.Change, prev.Amount)
		d.ChangePct = &pct
	}
	return d
}

func dueBucket(records []models.BillingRecord) Bucket {
	var b Bucket
	for i := range records {
		if records[i].AmountDue.IsPositive() {
			b.add(records[i].AmountDue)
		}
	}
	return b
}
