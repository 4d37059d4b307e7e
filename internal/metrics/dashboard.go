package metrics

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"billing/pkg/models"
)

// Dashboard is one of the fixed billing views: the global one or a single
// distribution center.
type Dashboard int

const (
	DashboardGlobal Dashboard = iota
	DashboardCDMatriz
	DashboardCDCariacica
	DashboardCDViana
	DashboardCDCivit
)

// Dashboards lists every dashboard in menu order.
var Dashboards = []Dashboard{
	DashboardGlobal,
	DashboardCDMatriz,
	DashboardCDCariacica,
	DashboardCDViana,
	DashboardCDCivit,
}

// ErrUnknownDashboard is returned for ids outside the fixed dashboard set.
var ErrUnknownDashboard = errors.New("unknown dashboard")

// ParseDashboard accepts the sheet id ("CD MATRIZ") or its slug ("cd-matriz").
func ParseDashboard(id string) (Dashboard, error) {
	key := strings.ToUpper(strings.TrimSpace(strings.ReplaceAll(id, "-", " ")))
	for _, d := range Dashboards {
		if d.ID() == key {
			return d, nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownDashboard, id)
}

// ID is the identifier used by the menu and in the Lotacao column.
func (d Dashboard) ID() string {
	switch d {
	case DashboardGlobal:
		return "GLOBAL"
	case DashboardCDMatriz:
		return "CD MATRIZ"
	case DashboardCDCariacica:
		return "CD CARIACICA"
	case DashboardCDViana:
		return "CD VIANA"
	case DashboardCDCivit:
		return "CD CIVIT"
	default:
		panic(fmt.Sprintf("metrics: invalid dashboard %d", int(d)))
	}
}

// Slug is the URL form of the id.
func (d Dashboard) Slug() string {
	return strings.ReplaceAll(strings.ToLower(d.ID()), " ", "-")
}

// Label is the human readable menu title.
func (d Dashboard) Label() string {
	switch d {
	case DashboardGlobal:
		return "Faturamento Global"
	case DashboardCDMatriz:
		return "CD Matriz"
	case DashboardCDCariacica:
		return "CD Cariacica"
	case DashboardCDViana:
		return "CD Viana"
	case DashboardCDCivit:
		return "CD Civit"
	default:
		panic(fmt.Sprintf("metrics: invalid dashboard %d", int(d)))
	}
}

// Location is the Lotacao value the dashboard filters on, "" for global.
func (d Dashboard) Location() string {
	if d == DashboardGlobal {
		return ""
	}
	return d.ID()
}

func (d Dashboard) String() string {
	return d.ID()
}

// Filter selects the records a view works on. Zero fields do not filter.
type Filter struct {
	Location   string
	Competence string     // MM/YYYY
	From       *time.Time // inclusive, by issue date
	To         *time.Time // inclusive, whole day
}

// WithoutLocation is the same filter across every location; it defines the
// global total a location's share is computed against.
func (f Filter) WithoutLocation() Filter {
	f.Location = ""
	return f
}

// Match reports whether r passes the filter.
func (f Filter) Match(r *models.BillingRecord) bool {
	if f.Location != "" && !strings.EqualFold(r.Location, f.Location) {
		return false
	}
	if f.Competence != "" && r.CompetencePeriod != f.Competence {
		return false
	}
	if f.From != nil && r.IssueDate.Before(*f.From) {
		return false
	}
	if f.To != nil && !r.IssueDate.Before(f.To.AddDate(0, 0, 1)) {
		return false
	}
	return true
}

// Apply returns the records that pass the filter. The input is not modified.
func (f Filter) Apply(records []models.BillingRecord) []models.BillingRecord {
	out := make([]models.BillingRecord, 0, len(records))
	for i := range records {
		if f.Match(&records[i]) {
			out = append(out, records[i])
		}
	}
	return out
}
