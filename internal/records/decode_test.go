package records

import (
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// billingRow builds a sheet row from column values using the fixed layout.
func billingRow(cells map[string]string) []interface{} {
	row := make([]interface{}, len(BillingColumns))
	for i, col := range BillingColumns {
		if v, ok := cells[col]; ok {
			row[i] = v
		}
	}
	return row
}

func TestParseCurrency(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"full format", "R$ 1.234,56", "1234.56"},
		{"no symbol", "1.234,56", "1234.56"},
		{"no thousands", "R$ 100,00", "100"},
		{"millions", "R$ 2.500.000,10", "2500000.1"},
		{"negative", "-R$ 10,50", "-10.5"},
		{"non breaking space", "R$\u00a0999,99", "999.99"},
		{"empty", "", "0"},
		{"garbage", "n/a", "0"},
		{"dash", "-", "0"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ParseCurrency(tt.input)
			assert.True(t, decimal.RequireFromString(tt.want).Equal(got), "got %s", got)
		})
	}
}

func TestParseDate(t *testing.T) {
	tests := []struct {
		input string
		y     int
		m     time.Month
		d     int
		ok    bool
	}{
		{"01/01/2024", 2024, time.January, 1, true},
		{"31/12/2023", 2023, time.December, 31, true},
		{"5/7/2024", 2024, time.July, 5, true},
		{"29/02/2024", 2024, time.February, 29, true},
		{"29/02/2023", 0, 0, 0, false},
		{"31/04/2024", 0, 0, 0, false},
		{"2024-01-01", 0, 0, 0, false},
		{"01/01/24", 0, 0, 0, false},
		{"", 0, 0, 0, false},
		{"aa/bb/cccc", 0, 0, 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got := ParseDate(tt.input, time.UTC)
			if !tt.ok {
				assert.Nil(t, got)
				return
			}
			require.NotNil(t, got)
			assert.Equal(t, tt.y, got.Year())
			assert.Equal(t, tt.m, got.Month())
			assert.Equal(t, tt.d, got.Day())
			assert.Equal(t, 0, got.Hour())
		})
	}
}

func TestParseDateRoundTrip(t *testing.T) {
	start := time.Date(2023, time.January, 1, 0, 0, 0, 0, time.UTC)
	for d := start; d.Year() == 2023; d = d.AddDate(0, 0, 1) {
		s := d.Format("02/01/2006")
		got := ParseDate(s, time.UTC)
		require.NotNil(t, got, s)
		assert.Equal(t, s, got.Format("02/01/2006"))
	}
}

func TestDecoderDecode(t *testing.T) {
	now := time.Date(2024, time.July, 1, 12, 0, 0, 0, time.UTC)
	dec := NewDecoder(now, WithLocation(time.UTC))

	row := billingRow(map[string]string{
		ColCode:          "42",
		ColClient:        "Acme",
		ColIssueDate:     "01/06/2024",
		ColDueDate:       "30/06/2024",
		ColInvoiceAmount: "R$ 1.200,50",
		ColAmountDue:     "R$ 200,00",
		ColRevenueType:   "Armazenagem",
		ColStatus:        "Em Aberto",
		ColPaidLate:      "Não",
		ColLocation:      "CD VIANA",
		ColCompetence:    "06/2024",
		ColDaysLate:      "abc",
	})

	rec, err := dec.Decode(row, 2)
	require.NoError(t, err)

	assert.Equal(t, 42, rec.Code)
	assert.Equal(t, "Acme", rec.ClientName)
	assert.Equal(t, time.Date(2024, time.June, 1, 0, 0, 0, 0, time.UTC), rec.IssueDate)
	require.NotNil(t, rec.DueDate)
	assert.Equal(t, 30, rec.DueDate.Day())
	assert.Nil(t, rec.PaymentDate)
	assert.True(t, decimal.RequireFromString("1200.50").Equal(rec.InvoiceAmount))
	assert.True(t, decimal.RequireFromString("200").Equal(rec.AmountDue))
	assert.True(t, rec.AmountReceived.IsZero())
	assert.Equal(t, 0, rec.DaysLate)
	assert.Equal(t, "06/2024", rec.CompetencePeriod)
	assert.True(t, rec.IsStorage())
	assert.True(t, rec.IsOverdue())
	assert.False(t, rec.IsLate())
}

func TestDecoderDropsRows(t *testing.T) {
	now := time.Date(2024, time.July, 1, 0, 0, 0, 0, time.UTC)
	dec := NewDecoder(now, WithLocation(time.UTC))

	tests := []struct {
		name   string
		cells  map[string]string
		column string
		want   error
	}{
		{"no issue date", map[string]string{ColCode: "1"}, ColIssueDate, ErrMissingIssueDate},
		{"bad issue date", map[string]string{ColCode: "1", ColIssueDate: "32/01/2024"}, ColIssueDate, ErrMissingIssueDate},
		{"too old", map[string]string{ColCode: "1", ColIssueDate: "30/06/2022"}, ColIssueDate, ErrOutsideRetention},
		{"bad code", map[string]string{ColCode: "X1", ColIssueDate: "01/01/2024"}, ColCode, ErrInvalidCode},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := dec.Decode(billingRow(tt.cells), 7)
			require.Error(t, err)
			assert.True(t, errors.Is(err, tt.want))

			var rowErr *RowError
			require.True(t, errors.As(err, &rowErr))
			assert.Equal(t, 7, rowErr.Row)
			assert.Equal(t, tt.column, rowErr.Column)
		})
	}
}

func TestDecoderRetentionBoundary(t *testing.T) {
	now := time.Date(2024, time.July, 1, 0, 0, 0, 0, time.UTC)
	dec := NewDecoder(now, WithLocation(time.UTC))

	_, err := dec.Decode(billingRow(map[string]string{ColCode: "1", ColIssueDate: "01/07/2022"}), 2)
	assert.NoError(t, err, "a record issued exactly at the cutoff is retained")
}

func TestDecodeAllScenario(t *testing.T) {
	now := time.Date(2024, time.July, 1, 0, 0, 0, 0, time.UTC)
	dec := NewDecoder(now, WithLocation(time.UTC))

	rows := [][]interface{}{
		billingRow(map[string]string{ColCode: "1", ColClient: "Acme", ColIssueDate: "01/01/2024", ColInvoiceAmount: "R$ 100,00", ColRevenueType: "Armazenagem"}),
		billingRow(map[string]string{ColCode: "1", ColClient: "Acme", ColIssueDate: "01/06/2024", ColInvoiceAmount: "R$ 200,00", ColRevenueType: "Armazenagem"}),
		billingRow(map[string]string{ColCode: "2", ColClient: "Old", ColIssueDate: "01/01/2020"}),
		{"3", "Short row"},
	}

	recs, report := dec.DecodeAll(rows, 2)
	require.Len(t, recs, 2)
	assert.Equal(t, 4, report.Total)
	assert.Equal(t, 2, report.Kept)
	assert.Equal(t, 2, report.DroppedCount())
	assert.Equal(t, 1, report.Dropped[ErrOutsideRetention])
	assert.Equal(t, 1, report.Dropped[ErrMissingIssueDate])
	assert.Equal(t, 5, report.Errors[1].Row)

	total := recs[0].InvoiceAmount.Add(recs[1].InvoiceAmount)
	assert.True(t, decimal.NewFromInt(300).Equal(total))
}

func TestDecodeClients(t *testing.T) {
	rows := [][]interface{}{
		{"10", "Acme", "00.000.000/0001-00", "Varejo", "CD MATRIZ", "0,30%", "Sim"},
		{"11", "Beta", "", "", "", "", "Não"},
		{"", "No code"},
		{"12", "Gamma"},
	}

	clients, errs := DecodeClients(rows, 2)
	require.Len(t, clients, 3)
	require.Len(t, errs, 1)
	assert.Equal(t, 4, errs[0].Row)

	assert.Equal(t, "0,30%", clients[0].AdValorem)
	assert.True(t, clients[0].Active)
	assert.False(t, clients[1].Active)
	assert.True(t, clients[2].Active, "missing flag defaults to active")
}

func TestSchema(t *testing.T) {
	_, err := NewSchema([]string{"a", "b", "a"})
	assert.Error(t, err)

	s := MustSchema([]string{"a", "b"})
	assert.NoError(t, s.Require("a"))
	assert.ErrorContains(t, s.Require("a", "c", "d"), "c, d")
	assert.Equal(t, "", s.Get([]interface{}{"x"}, "b"))
	assert.Equal(t, "x", s.Get([]interface{}{" x "}, "a"))
}

func TestFormatBRL(t *testing.T) {
	assert.Equal(t, "R$ 1.234,56", FormatBRL(decimal.RequireFromString("1234.56")))
	assert.Equal(t, "12,5%", FormatPercent(12.5))
}
