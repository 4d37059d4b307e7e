package metrics

import (
	"sync"
	"time"

	"billing/pkg/models"
)

// Category is the payment-behavior class of a client.
type Category string

const (
	CategoryNA         Category = "N/A"
	CategoryNew        Category = "New Client"
	CategoryInactive   Category = "Inactive"
	CategoryGoodPayer  Category = "Good Payer"
	CategoryOnAlert    Category = "Payer on Alert"
	CategoryDelinquent Category = "Delinquent"
)

// Classification thresholds.
const (
	RecentWindowMonths   = 6
	DelinquentLatePct    = 50.0
	OnAlertLatePct       = 10.0
	minRecordsForHistory = 2
)

// Classify computes the payment category of clientName from every record
// of the dataset. Only records issued in the RecentWindowMonths before now
// count toward the late percentage.
func Classify(clientName string, all []models.BillingRecord, now time.Time) Category {
	if len(all) == 0 {
		return CategoryNA
	}

	var client []*models.BillingRecord
	for i := range all {
		if all[i].ClientName == clientName {
			client = append(client, &all[i])
		}
	}
	return classifyClient(client, now)
}

func classifyClient(client []*models.BillingRecord, now time.Time) Category {
	if len(client) == 0 {
		return CategoryNA
	}
	if len(client) < minRecordsForHistory {
		return CategoryNew
	}

	since := now.AddDate(0, -RecentWindowMonths, 0)
	var recent, late int
	for _, r := range client {
		if !r.IssueDate.After(since) {
			continue
		}
		recent++
		if r.IsLate() {
			late++
		}
	}
	if recent == 0 {
		return CategoryInactive
	}

	latePct := float64(late) / float64(recent) * 100
	switch {
	case latePct > DelinquentLatePct:
		return CategoryDelinquent
	case latePct > OnAlertLatePct:
		return CategoryOnAlert
	default:
		return CategoryGoodPayer
	}
}

// Classifier classifies clients of one dataset snapshot, caching results per
// client name. The snapshot and now must not change for its lifetime.
type Classifier struct {
	now      time.Time
	byClient map[string][]*models.BillingRecord

	mu    sync.Mutex
	cache map[string]Category
}

// NewClassifier indexes all by client name.
func NewClassifier(all []models.BillingRecord, now time.Time) *Classifier {
	byClient := make(map[string][]*models.BillingRecord)
	for i := range all {
		name := all[i].ClientName
		byClient[name] = append(byClient[name], &all[i])
	}
	return &Classifier{
		now:      now,
		byClient: byClient,
		cache:    make(map[string]Category),
	}
}

// Classify returns the same result as the package-level Classify over the
// snapshot the classifier was built from.
func (c *Classifier) Classify(clientName string) Category {
	c.mu.Lock()
	defer c.mu.Unlock()

	if cat, ok := c.cache[clientName]; ok {
		return cat
	}
	cat := classifyClient(c.byClient[clientName], c.now)
	c.cache[clientName] = cat
	return cat
}
