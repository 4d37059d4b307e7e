package metrics

import (
	"sort"

	"github.com/shopspring/decimal"

	"billing/pkg/models"
)

// Ranking sizes.
const (
	maxSplitClients = 10
	rankListSize    = 5
)

var hundred = decimal.NewFromInt(100)

// Bucket is a sum of invoice amounts and the number of titles in it.
type Bucket struct {
	Amount decimal.Decimal `json:"amount"`
	Count  int             `json:"count"`
}

func (b *Bucket) add(amount decimal.Decimal) {
	b.Amount = b.Amount.Add(amount)
	b.Count++
}

// KPIs are the headline totals of a filtered record set.
type KPIs struct {
	Storage       Bucket          `json:"storage"`
	Rental        Bucket          `json:"rental"`
	Total         Bucket          `json:"total"`
	GlobalTotal   decimal.Decimal `json:"global_total"`
	ShareOfGlobal float64         `json:"share_of_global"` // percent
}

// ComputeKPIs totals filtered and measures its share of global, which must
// be the same selection without the location restriction.
func ComputeKPIs(filtered, global []models.BillingRecord) KPIs {
	var k KPIs
	for i := range filtered {
		r := &filtered[i]
		switch r.RevenueType {
		case models.RevenueStorage:
			k.Storage.add(r.InvoiceAmount)
		case models.RevenueRental:
			k.Rental.add(r.InvoiceAmount)
		}
		k.Total.add(r.InvoiceAmount)
	}

	k.GlobalTotal = sumInvoiced(global)
	k.ShareOfGlobal = percentOf(k.Total.Amount, k.GlobalTotal)
	return k
}

// DailyPoint is the billing of one calendar day.
type DailyPoint struct {
	Day    string          `json:"day"` // DD/MM
	Amount decimal.Decimal `json:"amount"`
	Count  int             `json:"count"`
}

// DailySeries groups records by issue day, ordered by the DD/MM key.
func DailySeries(records []models.BillingRecord) []DailyPoint {
	byDay := make(map[string]*DailyPoint)
	for i := range records {
		r := &records[i]
		day := r.IssueDate.Format("02/01")
		p, ok := byDay[day]
		if !ok {
			p = &DailyPoint{Day: day}
			byDay[day] = p
		}
		p.Amount = p.Amount.Add(r.InvoiceAmount)
		p.Count++
	}

	out := make([]DailyPoint, 0, len(byDay))
	for _, p := range byDay {
		out = append(out, *p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Day < out[j].Day })
	return out
}

// ClientAmount is a client name with an aggregated amount.
type ClientAmount struct {
	Name   string          `json:"name"`
	Amount decimal.Decimal `json:"amount"`
}

// Ranking holds the best and worst storage clients.
type Ranking struct {
	Top    []ClientAmount `json:"top"`
	Bottom []ClientAmount `json:"bottom"` // worst first when more than ten clients
}

// Rank orders storage clients by billed amount. With a single client it is
// the top one; up to ten clients are split in half with the extra one on
// top; beyond that the five best and five worst are returned.
func Rank(records []models.BillingRecord) Ranking {
	totals := make(map[string]decimal.Decimal)
	for i := range records {
		r := &records[i]
		if !r.IsStorage() {
			continue
		}
		totals[r.ClientName] = totals[r.ClientName].Add(r.InvoiceAmount)
	}
	sorted := sortedDesc(totals)

	n := len(sorted)
	switch {
	case n == 0:
		return Ranking{Top: []ClientAmount{}, Bottom: []ClientAmount{}}
	case n == 1:
		return Ranking{Top: sorted, Bottom: []ClientAmount{}}
	case n <= maxSplitClients:
		half := (n + 1) / 2
		return Ranking{Top: sorted[:half], Bottom: sorted[half:]}
	default:
		bottom := make([]ClientAmount, 0, rankListSize)
		for i := n - 1; i >= n-rankListSize; i-- {
			bottom = append(bottom, sorted[i])
		}
		return Ranking{Top: sorted[:rankListSize], Bottom: bottom}
	}
}

// Distribution groups clients by payment category with what they were billed.
type Distribution struct {
	GoodPayers []ClientAmount `json:"good_payers"`
	OnAlert    []ClientAmount `json:"on_alert"`
	Delinquent []ClientAmount `json:"delinquent"`
}

// ScoreDistribution classifies every distinct client of filtered. The
// classifier must be built over the full dataset, not the filtered one.
func ScoreDistribution(filtered []models.BillingRecord, c *Classifier) Distribution {
	totals := make(map[string]decimal.Decimal)
	for i := range filtered {
		r := &filtered[i]
		totals[r.ClientName] = totals[r.ClientName].Add(r.InvoiceAmount)
	}

	d := Distribution{
		GoodPayers: []ClientAmount{},
		OnAlert:    []ClientAmount{},
		Delinquent: []ClientAmount{},
	}
	for _, ca := range sortedDesc(totals) {
		switch c.Classify(ca.Name) {
		case CategoryGoodPayer:
			d.GoodPayers = append(d.GoodPayers, ca)
		case CategoryOnAlert:
			d.OnAlert = append(d.OnAlert, ca)
		case CategoryDelinquent:
			d.Delinquent = append(d.Delinquent, ca)
		}
	}
	return d
}

// OutstandingByClient sums the positive balances due per client, largest first.
func OutstandingByClient(records []models.BillingRecord) []ClientAmount {
	totals := make(map[string]decimal.Decimal)
	for i := range records {
		r := &records[i]
		if !r.AmountDue.IsPositive() {
			continue
		}
		totals[r.ClientName] = totals[r.ClientName].Add(r.AmountDue)
	}
	return sortedDesc(totals)
}

// sortedDesc orders by amount descending, then by name.
func sortedDesc(totals map[string]decimal.Decimal) []ClientAmount {
	out := make([]ClientAmount, 0, len(totals))
	for name, amount := range totals {
		out = append(out, ClientAmount{Name: name, Amount: amount})
	}
	sort.Slice(out, func(i, j int) bool {
		if c := out[i].Amount.Cmp(out[j].Amount); c != 0 {
			return c > 0
		}
		return out[i].Name < out[j].Name
	})
	return out
}

func sumInvoiced(records []models.BillingRecord) decimal.Decimal {
	total := decimal.Zero
	for i := range records {
		total = total.Add(records[i].InvoiceAmount)
	}
	return total
}

// percentOf returns part/whole*100, or 0 when whole is zero.
func percentOf(part, whole decimal.Decimal) float64 {
	if whole.IsZero() {
		return 0
	}
	return part.Div(whole).Mul(hundred).InexactFloat64()
}
