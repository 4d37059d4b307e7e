package metrics

import (
	"fmt"
	"testing"
	"time"
	_ "time/tzdata"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"billing/pkg/models"
)

var testNow = time.Date(2024, time.July, 1, 0, 0, 0, 0, time.UTC)

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

type recOpt func(*models.BillingRecord)

func withStatus(s string) recOpt { return func(r *models.BillingRecord) { r.Status = s } }
func withPaidLate() recOpt { return func(r *models.BillingRecord) { r.PaidLate = models.PaidLateYes } }
func withLocation(l string) recOpt { return func(r *models.BillingRecord) { r.Location = l } }
func withCompetence(c string) recOpt { return func(r *models.BillingRecord) { r.CompetencePeriod = c } }
func withType(t string) recOpt { return func(r *models.BillingRecord) { r.RevenueType = t } }
func withDue(amount string) recOpt { return func(r *models.BillingRecord) { r.AmountDue = dec(amount) } }
func withCode(code int) recOpt { return func(r *models.BillingRecord) { r.Code = code } }

func rec(client string, issued time.Time, amount string, opts ...recOpt) models.BillingRecord {
	r := models.BillingRecord{
		Code:          len(client),
		ClientName:    client,
		IssueDate:     issued,
		InvoiceAmount: dec(amount),
		RevenueType:   models.RevenueStorage,
		Status:        models.StatusSettled,
	}
	for _, o := range opts {
		o(&r)
	}
	return r
}

// recentSeries returns n recent records for client, the first late ones late.
func recentSeries(client string, n, late int) []models.BillingRecord {
	var out []models.BillingRecord
	for i := 0; i < n; i++ {
		var opts []recOpt
		if i < late {
			opts = append(opts, withStatus(models.StatusLate))
		}
		out = append(out, rec(client, day(2024, time.June, 1+i), "10", opts...))
	}
	return out
}

func TestClassify(t *testing.T) {
	other := rec("Other", day(2024, time.June, 1), "1")

	tests := []struct {
		name    string
		records []models.BillingRecord
		want    Category
	}{
		{"empty dataset", nil, CategoryNA},
		{"client absent", []models.BillingRecord{other}, CategoryNA},
		{"single record", []models.BillingRecord{rec("Acme", day(2024, time.June, 1), "1"), other}, CategoryNew},
		{"only old records", []models.BillingRecord{
			rec("Acme", day(2023, time.January, 1), "1"),
			rec("Acme", day(2023, time.June, 1), "1"),
		}, CategoryInactive},
		{"window boundary is exclusive", []models.BillingRecord{
			rec("Acme", day(2024, time.January, 1), "1"),
			rec("Acme", day(2023, time.June, 1), "1"),
		}, CategoryInactive},
		{"recent no late", recentSeries("Acme", 4, 0), CategoryGoodPayer},
		{"exactly ten percent late", recentSeries("Acme", 10, 1), CategoryGoodPayer},
		{"twenty percent late", recentSeries("Acme", 5, 1), CategoryOnAlert},
		{"exactly fifty percent late", recentSeries("Acme", 4, 2), CategoryOnAlert},
		{"sixty percent late", recentSeries("Acme", 5, 3), CategoryDelinquent},
		{"paid late flag counts", []models.BillingRecord{
			rec("Acme", day(2024, time.June, 1), "1", withPaidLate()),
			rec("Acme", day(2024, time.June, 2), "1", withPaidLate()),
		}, CategoryDelinquent},
		{"old late records ignored", append(recentSeries("Acme", 2, 0),
			rec("Acme", day(2023, time.March, 1), "1", withStatus(models.StatusLate)),
			rec("Acme", day(2023, time.April, 1), "1", withStatus(models.StatusLate)),
			rec("Acme", day(2023, time.May, 1), "1", withStatus(models.StatusLate)),
		), CategoryGoodPayer},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Classify("Acme", tt.records, testNow))

			if len(tt.records) > 0 {
				c := NewClassifier(tt.records, testNow)
				assert.Equal(t, tt.want, c.Classify("Acme"))
				assert.Equal(t, tt.want, c.Classify("Acme"), "cached result")
			}
		})
	}
}

func TestClassifyDoesNotDependOnOrder(t *testing.T) {
	records := recentSeries("Acme", 5, 3)
	reversed := make([]models.BillingRecord, len(records))
	for i := range records {
		reversed[len(records)-1-i] = records[i]
	}
	assert.Equal(t, Classify("Acme", records, testNow), Classify("Acme", reversed, testNow))
}

func TestRank(t *testing.T) {
	t.Run("twelve clients", func(t *testing.T) {
		var records []models.BillingRecord
		for i := 1; i <= 12; i++ {
			records = append(records, rec(fmt.Sprintf("C%02d", i), testNow, fmt.Sprint(1300-i*100)))
		}

		r := Rank(records)
		require.Len(t, r.Top, 5)
		require.Len(t, r.Bottom, 5)

		for i, ca := range r.Top {
			assert.Equal(t, fmt.Sprintf("C%02d", i+1), ca.Name)
		}
		for i, ca := range r.Bottom {
			assert.Equal(t, fmt.Sprintf("C%02d", 12-i), ca.Name, "worst first")
		}

		top := map[string]bool{}
		for _, ca := range r.Top {
			top[ca.Name] = true
		}
		for _, ca := range r.Bottom {
			assert.False(t, top[ca.Name])
		}
	})

	t.Run("one client", func(t *testing.T) {
		r := Rank([]models.BillingRecord{rec("Acme", testNow, "10"), rec("Acme", testNow, "5")})
		require.Len(t, r.Top, 1)
		assert.Equal(t, "Acme", r.Top[0].Name)
		assert.True(t, dec("15").Equal(r.Top[0].Amount))
		assert.Empty(t, r.Bottom)
	})

	t.Run("no clients", func(t *testing.T) {
		r := Rank(nil)
		assert.Empty(t, r.Top)
		assert.Empty(t, r.Bottom)
	})

	t.Run("five clients split with ceiling on top", func(t *testing.T) {
		var records []models.BillingRecord
		for i := 1; i <= 5; i++ {
			records = append(records, rec(fmt.Sprintf("C%d", i), testNow, fmt.Sprint(100-i)))
		}
		r := Rank(records)
		require.Len(t, r.Top, 3)
		require.Len(t, r.Bottom, 2)
		assert.Equal(t, "C1", r.Top[0].Name)
		assert.Equal(t, "C4", r.Bottom[0].Name)
	})

	t.Run("only storage counts", func(t *testing.T) {
		r := Rank([]models.BillingRecord{
			rec("Acme", testNow, "10"),
			rec("Rent", testNow, "1000", withType(models.RevenueRental)),
		})
		require.Len(t, r.Top, 1)
		assert.Equal(t, "Acme", r.Top[0].Name)
	})

	t.Run("ties ordered by name", func(t *testing.T) {
		r := Rank([]models.BillingRecord{rec("B", testNow, "10"), rec("A", testNow, "10")})
		assert.Equal(t, "A", r.Top[0].Name)
		assert.Equal(t, "B", r.Bottom[0].Name)
	})
}

func TestRate(t *testing.T) {
	cfg := DefaultRatingConfig()

	t.Run("nothing billed", func(t *testing.T) {
		r := Rate(100, nil, cfg)
		assert.Equal(t, GradeNA, r.Grade)
	})

	t.Run("full share no overdue", func(t *testing.T) {
		r := Rate(100, []models.BillingRecord{rec("Acme", testNow, "100")}, cfg)
		assert.InDelta(t, 70, r.Score, 1e-9)
		assert.Equal(t, "A", r.Grade)
	})

	t.Run("overdue drags the grade", func(t *testing.T) {
		records := []models.BillingRecord{
			rec("Acme", testNow, "100", withStatus(models.StatusLate), withDue("10")),
			rec("Beta", testNow, "100", withStatus(models.StatusOpen), withDue("10")),
			rec("Gama", testNow, "200", withDue("500")),
		}
		r := Rate(50, records, cfg)
		assert.InDelta(t, 5, r.OverduePct, 1e-9)
		assert.InDelta(t, 50*0.7-5*1.3, r.Score, 1e-9)
		assert.Equal(t, "C", r.Grade)
	})

	t.Run("bands", func(t *testing.T) {
		for score, want := range map[float64]string{61: "A", 60: "B", 40.5: "B", 21: "C", 20: "D", 0.1: "D", 0: "E", -10: "E"} {
			assert.Equal(t, want, cfg.grade(score), "score %v", score)
		}
	})

	t.Run("custom coefficients", func(t *testing.T) {
		custom := cfg
		custom.ShareWeight = 1
		r := Rate(50, []models.BillingRecord{rec("Acme", testNow, "1")}, custom)
		assert.InDelta(t, 50, r.Score, 1e-9)
		assert.Equal(t, "B", r.Grade)
	})
}

func TestComputeKPIs(t *testing.T) {
	records := []models.BillingRecord{
		rec("Acme", testNow, "100", withLocation("CD VIANA")),
		rec("Acme", testNow, "50", withLocation("CD VIANA"), withType(models.RevenueRental)),
		rec("Beta", testNow, "25", withLocation("CD VIANA"), withType("Ad Valorem")),
		rec("Gama", testNow, "325", withLocation("CD MATRIZ")),
	}
	f := Filter{Location: "CD VIANA"}
	k := ComputeKPIs(f.Apply(records), f.WithoutLocation().Apply(records))

	assert.True(t, dec("100").Equal(k.Storage.Amount))
	assert.Equal(t, 1, k.Storage.Count)
	assert.True(t, dec("50").Equal(k.Rental.Amount))
	assert.True(t, dec("175").Equal(k.Total.Amount))
	assert.Equal(t, 3, k.Total.Count)
	assert.True(t, dec("500").Equal(k.GlobalTotal))
	assert.InDelta(t, 35, k.ShareOfGlobal, 1e-9)

	empty := ComputeKPIs(nil, nil)
	assert.Zero(t, empty.ShareOfGlobal)
}

func TestDailySeries(t *testing.T) {
	records := []models.BillingRecord{
		rec("A", day(2024, time.June, 10), "10"),
		rec("B", day(2024, time.June, 2), "5"),
		rec("C", day(2024, time.June, 10), "1"),
	}
	series := DailySeries(records)
	require.Len(t, series, 2)
	assert.Equal(t, "02/06", series[0].Day)
	assert.Equal(t, "10/06", series[1].Day)
	assert.Equal(t, 2, series[1].Count)
	assert.True(t, dec("11").Equal(series[1].Amount))
}

func TestOutstandingByClient(t *testing.T) {
	records := []models.BillingRecord{
		rec("A", testNow, "10", withDue("5")),
		rec("A", testNow, "10", withDue("-3")),
		rec("B", testNow, "10", withDue("20")),
		rec("C", testNow, "10"),
	}
	out := OutstandingByClient(records)
	require.Len(t, out, 2)
	assert.Equal(t, "B", out[0].Name)
	assert.True(t, dec("5").Equal(out[1].Amount))
}

func TestScoreDistribution(t *testing.T) {
	all := append(recentSeries("Good", 3, 0), recentSeries("Bad", 3, 3)...)
	all = append(all, recentSeries("Alert", 4, 1)...)
	all = append(all, rec("New", testNow, "99"))

	c := NewClassifier(all, testNow)
	filtered := Filter{}.Apply(all)
	d := ScoreDistribution(filtered, c)

	require.Len(t, d.GoodPayers, 1)
	require.Len(t, d.OnAlert, 1)
	require.Len(t, d.Delinquent, 1)
	assert.Equal(t, "Good", d.GoodPayers[0].Name)
	assert.True(t, dec("30").Equal(d.GoodPayers[0].Amount))
	assert.Equal(t, "Alert", d.OnAlert[0].Name)
	assert.Equal(t, "Bad", d.Delinquent[0].Name)
}

func TestCompareCompetence(t *testing.T) {
	records := []models.BillingRecord{
		rec("A", day(2024, time.May, 1), "10", withCompetence("05/2024")),
		rec("A", day(2024, time.March, 1), "20", withCompetence("03/2024")),
		rec("A", day(2023, time.December, 1), "30", withCompetence("12/2023")),
		rec("A", day(2024, time.May, 2), "5", withCompetence("05/2024")),
		rec("A", day(2024, time.May, 2), "5", withCompetence("")),
	}

	assert.Equal(t, []string{"05/2024", "03/2024", "12/2023"}, CompetencePeriods(records))

	cmp, err := Compare(records, Selection{Mode: ModeCompetence, Competence: "05/2024"})
	require.NoError(t, err)
	assert.True(t, cmp.HasPrevious)
	assert.Equal(t, "03/2024", cmp.PreviousLabel, "missing April is skipped")
	assert.Len(t, cmp.Current, 2)
	assert.Len(t, cmp.Previous, 1)

	cmp, err = Compare(records, Selection{Mode: ModeCompetence, Competence: "12/2023"})
	require.NoError(t, err)
	assert.False(t, cmp.HasPrevious)

	_, err = Compare(records, Selection{Mode: ModeCompetence, Competence: "01/2020"})
	assert.ErrorIs(t, err, ErrUnknownPeriod)

	_, err = Compare(records, Selection{Mode: ModeCompetence, Competence: "13/2024"})
	assert.ErrorIs(t, err, ErrInvalidPeriod)

	_, err = Compare(records, Selection{Mode: "weekly"})
	assert.ErrorIs(t, err, ErrInvalidPeriod)
}

func TestCompareDateRange(t *testing.T) {
	records := []models.BillingRecord{
		rec("A", day(2024, time.March, 10), "10"),
		rec("A", day(2024, time.February, 1), "20"),
		rec("A", day(2024, time.February, 29), "30"),
		rec("A", day(2024, time.January, 31), "40"),
		rec("A", day(2024, time.March, 31), "50"),
	}

	cmp, err := Compare(records, Selection{
		Mode: ModeDateRange,
		From: day(2024, time.March, 5),
		To:   day(2024, time.March, 31),
	})
	require.NoError(t, err)
	assert.Len(t, cmp.Current, 2, "end day is inclusive")
	assert.Len(t, cmp.Previous, 2)
	assert.Equal(t, "02/2024", cmp.PreviousLabel)

	_, err = Compare(records, Selection{Mode: ModeDateRange, From: day(2024, time.March, 5), To: day(2024, time.March, 1)})
	assert.ErrorIs(t, err, ErrInvalidPeriod)
}

func TestPreviousMonth(t *testing.T) {
	first, last := PreviousMonth(day(2024, time.January, 15))
	assert.Equal(t, day(2023, time.December, 1), first)
	assert.Equal(t, day(2023, time.December, 31), last)

	first, last = PreviousMonth(day(2024, time.March, 31))
	assert.Equal(t, day(2024, time.February, 1), first)
	assert.Equal(t, day(2024, time.February, 29), last)
}

func TestDiff(t *testing.T) {
	cmp := Comparison{
		CurrentLabel:  "05/2024",
		PreviousLabel: "04/2024",
		HasPrevious:   true,
		Current: []models.BillingRecord{
			rec("A", testNow, "150"),
			rec("A", testNow, "10", withType(models.RevenueRental), withDue("10")),
		},
		Previous: []models.BillingRecord{rec("A", testNow, "100")},
	}

	d := Diff(cmp)
	assert.True(t, dec("50").Equal(d.Storage.Change))
	require.NotNil(t, d.Storage.ChangePct)
	assert.InDelta(t, 50, *d.Storage.ChangePct, 1e-9)
	assert.Nil(t, d.Rental.ChangePct, "no previous rental billing")
	assert.Equal(t, [2]int{1, 2}, d.Total.Count)
	assert.True(t, dec("10").Equal(d.AmountDue.Current))
}

func TestParseDashboard(t *testing.T) {
	for _, d := range Dashboards {
		got, err := ParseDashboard(d.ID())
		require.NoError(t, err)
		assert.Equal(t, d, got)

		got, err = ParseDashboard(d.Slug())
		require.NoError(t, err)
		assert.Equal(t, d, got)
	}

	_, err := ParseDashboard("CD MARTE")
	assert.ErrorIs(t, err, ErrUnknownDashboard)
	assert.Equal(t, "", DashboardGlobal.Location())
	assert.Equal(t, "CD CIVIT", DashboardCDCivit.Location())
}

func TestParseSelection(t *testing.T) {
	sel, ok, err := ParseSelection("CD VIANA", " 03/2024 ", "2024-01-01", "2024-01-31", time.UTC)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, ModeCompetence, sel.Mode)
	assert.Equal(t, Filter{Location: "CD VIANA", Competence: "03/2024"}, sel.Filter())

	sel, ok, err = ParseSelection("", "", "2024-01-10", "2024-01-20", time.UTC)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, ModeDateRange, sel.Mode)
	f := sel.Filter()
	require.NotNil(t, f.From)
	require.NotNil(t, f.To)
	assert.Equal(t, "2024-01-10", f.From.Format("2006-01-02"))
	assert.Equal(t, "2024-01-20", f.To.Format("2006-01-02"))

	sel, ok, err = ParseSelection("CD CIVIT", "", "", "", time.UTC)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, Filter{Location: "CD CIVIT"}, sel.Filter())

	for _, tc := range []struct{ competence, from, to string }{
		{"13/2024", "", ""},
		{"+3/2024", "", ""},
		{"003/2024", "", ""},
		{"03/24", "", ""},
		{"", "2024-01-10", ""},
		{"", "10/01/2024", "2024-01-20"},
		{"", "2024-02-01", "2024-01-01"},
	} {
		_, _, err := ParseSelection("", tc.competence, tc.from, tc.to, time.UTC)
		assert.ErrorIs(t, err, ErrInvalidPeriod, "%+v", tc)
	}
}

func TestParseSelectionNormalizesCompetence(t *testing.T) {
	records := []models.BillingRecord{
		rec("Acme", day(2024, time.March, 5), "100", withCompetence("03/2024")),
		rec("Acme", day(2024, time.February, 5), "50", withCompetence("02/2024")),
	}

	sel, ok, err := ParseSelection("", "3/2024", "", "", time.UTC)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "03/2024", sel.Competence)

	cmp, err := Compare(records, sel)
	require.NoError(t, err)
	assert.Len(t, cmp.Current, 1)
	assert.Equal(t, "02/2024", cmp.PreviousLabel)
	assert.Len(t, cmp.Previous, 1)
}

func TestParseSelectionUsesSheetZone(t *testing.T) {
	tokyo, err := time.LoadLocation("Asia/Tokyo")
	require.NoError(t, err)

	records := []models.BillingRecord{
		rec("Acme", time.Date(2024, time.June, 1, 0, 0, 0, 0, tokyo), "100"),
		rec("Acme", time.Date(2024, time.May, 1, 0, 0, 0, 0, tokyo), "40"),
	}

	sel, ok, err := ParseSelection("", "", "2024-06-01", "2024-06-30", tokyo)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, tokyo, sel.From.Location())

	cmp, err := Compare(records, sel)
	require.NoError(t, err)
	assert.Len(t, cmp.Current, 1)
	assert.Len(t, cmp.Previous, 1)
	assert.Equal(t, "05/2024", cmp.PreviousLabel)

	// Parsed as UTC midnights the first of June falls outside the range.
	sel, _, err = ParseSelection("", "", "2024-06-01", "2024-06-30", time.UTC)
	require.NoError(t, err)
	cmp, err = Compare(records, sel)
	require.NoError(t, err)
	assert.Empty(t, cmp.Current)
}

func TestEngineScenario(t *testing.T) {
	records := []models.BillingRecord{
		rec("Acme", day(2024, time.January, 1), "100", withCode(1)),
		rec("Acme", day(2024, time.June, 1), "200", withCode(1)),
	}
	e := NewEngine(records, testNow, DefaultRatingConfig())

	assert.Equal(t, CategoryGoodPayer, e.Classify("Acme"))

	s := e.Summarize(Filter{})
	assert.True(t, dec("300").Equal(s.KPIs.Total.Amount))
	assert.InDelta(t, 100, s.KPIs.ShareOfGlobal, 1e-9)
	assert.Equal(t, "A", s.Rating.Grade)
	require.Len(t, s.Distribution.GoodPayers, 1)

	p, ok := e.ClientProfile(1, []models.ClientMaster{{Code: 1, Name: "Acme", AdValorem: "0,3%"}})
	require.True(t, ok)
	assert.Equal(t, 2, p.Titles)
	assert.True(t, dec("300").Equal(p.TotalBilled))
	require.NotNil(t, p.Master)
	assert.Equal(t, "0,3%", p.Master.AdValorem)
	require.NotNil(t, p.LastIssue)
	assert.Equal(t, day(2024, time.June, 1), *p.LastIssue)

	_, ok = e.ClientProfile(99, nil)
	assert.False(t, ok)

	clients := e.Clients()
	require.Len(t, clients, 1)
	assert.Equal(t, CategoryGoodPayer, clients[0].Category)
}

func TestEngineEmpty(t *testing.T) {
	e := NewEngine(nil, testNow, DefaultRatingConfig())
	assert.Equal(t, CategoryNA, e.Classify("Anyone"))
	s := e.Summarize(Filter{Location: "CD VIANA"})
	assert.Equal(t, GradeNA, s.Rating.Grade)
	assert.Empty(t, s.Ranking.Top)
}
