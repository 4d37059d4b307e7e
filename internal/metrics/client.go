package metrics

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"billing/pkg/models"
)

// ClientProfile is the derived 360 view of one client. It is recomputed on
// every request and never stored.
type ClientProfile struct {
	Code          int                  `json:"code"`
	Name          string               `json:"name"`
	Category      Category             `json:"category"`
	Titles        int                  `json:"titles"`
	TotalBilled   decimal.Decimal      `json:"total_billed"`
	TotalReceived decimal.Decimal      `json:"total_received"`
	TotalDue      decimal.Decimal      `json:"total_due"`
	LateTitles    int                  `json:"late_titles"`
	LastIssue     *time.Time           `json:"last_issue,omitempty"`
	ByCompetence  []CompetenceTotal    `json:"by_competence"`
	Master        *models.ClientMaster `json:"master,omitempty"`
}

// CompetenceTotal is what a client was billed in one competence period.
type CompetenceTotal struct {
	Competence string          `json:"competence"`
	Amount     decimal.Decimal `json:"amount"`
}

// ClientProfile builds the profile of the client with the given code. It
// returns false when the snapshot has no record for that code.
func (e *Engine) ClientProfile(code int, masters []models.ClientMaster) (ClientProfile, bool) {
	var own []models.BillingRecord
	for i := range e.records {
		if e.records[i].Code == code {
			own = append(own, e.records[i])
		}
	}
	if len(own) == 0 {
		return ClientProfile{}, false
	}

	p := ClientProfile{Code: code, Name: own[0].ClientName}
	byComp := make(map[string]decimal.Decimal)
	for i := range own {
		r := &own[i]
		p.Titles++
		p.TotalBilled = p.TotalBilled.Add(r.InvoiceAmount)
		p.TotalReceived = p.TotalReceived.Add(r.AmountReceived)
		if r.AmountDue.IsPositive() {
			p.TotalDue = p.TotalDue.Add(r.AmountDue)
		}
		if r.IsLate() {
			p.LateTitles++
		}
		if p.LastIssue == nil || r.IssueDate.After(*p.LastIssue) {
			issued := r.IssueDate
			p.LastIssue = &issued
		}
		if r.CompetencePeriod != "" {
			byComp[r.CompetencePeriod] = byComp[r.CompetencePeriod].Add(r.InvoiceAmount)
		}
	}
	p.Category = e.Classify(p.Name)

	order := CompetencePeriods(own)
	for _, c := range order {
		p.ByCompetence = append(p.ByCompetence, CompetenceTotal{Competence: c, Amount: byComp[c]})
	}

	for i := range masters {
		if masters[i].Code == code {
			m := masters[i]
			p.Master = &m
			break
		}
	}
	return p, true
}

// Clients lists every client of the snapshot with its category, ordered by name.
func (e *Engine) Clients() []ClientSummary {
	seen := make(map[int]int)
	var out []ClientSummary
	for i := range e.records {
		r := &e.records[i]
		idx, ok := seen[r.Code]
		if !ok {
			idx = len(out)
			seen[r.Code] = idx
			out = append(out, ClientSummary{Code: r.Code, Name: r.ClientName})
		}
		out[idx].TotalBilled = out[idx].TotalBilled.Add(r.InvoiceAmount)
	}
	for i := range out {
		out[i].Category = e.Classify(out[i].Name)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// ClientSummary is one line of the client list.
type ClientSummary struct {
	Code        int             `json:"code"`
	Name        string          `json:"name"`
	Category    Category        `json:"category"`
	TotalBilled decimal.Decimal `json:"total_billed"`
}
