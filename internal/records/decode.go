// Package records turns raw spreadsheet rows into typed billing records.
//
// Rows are decoded through a Schema, never by raw position. A row either
// becomes a models.BillingRecord or yields a *RowError naming the column that
// made it unusable. Malformed amounts and optional dates degrade to zero and
// nil instead of failing the row.
package records

import (
	"errors"
	"time"

	"billing/pkg/models"
)

// DefaultRetention is how far back issue dates are kept.
const DefaultRetention = 2 // years

// Decoder converts receivables rows into billing records.
type Decoder struct {
	schema         *Schema
	now            time.Time
	location       *time.Location
	retentionYears int
}

// Option configures a Decoder.
type Option func(*Decoder)

// WithLocation sets the time zone dates are interpreted in.
func WithLocation(loc *time.Location) Option {
	return func(d *Decoder) {
		d.location = loc
	}
}

// WithRetentionYears overrides the retention window.
func WithRetentionYears(years int) Option {
	return func(d *Decoder) {
		d.retentionYears = years
	}
}

// WithSchema overrides the fixed receivables layout.
func WithSchema(s *Schema) Option {
	return func(d *Decoder) {
		d.schema = s
	}
}

// NewDecoder creates a decoder whose retention window ends at now.
func NewDecoder(now time.Time, opts ...Option) *Decoder {
	d := &Decoder{
		schema:         MustSchema(BillingColumns),
		now:            now,
		location:       time.Local,
		retentionYears: DefaultRetention,
	}
	for _, o := range opts {
		o(d)
	}
	return d
}

// Cutoff is the earliest issue date retained.
func (d *Decoder) Cutoff() time.Time {
	return d.now.AddDate(-d.retentionYears, 0, 0)
}

// Decode converts a single row. rowNum is the 1-based sheet row used in errors.
func (d *Decoder) Decode(row []interface{}, rowNum int) (models.BillingRecord, error) {
	s := d.schema

	issueRaw := s.Get(row, ColIssueDate)
	issue := ParseDate(issueRaw, d.location)
	if issue == nil {
		return models.BillingRecord{}, newRowError(rowNum, ColIssueDate, issueRaw, ErrMissingIssueDate)
	}
	if issue.Before(d.Cutoff()) {
		return models.BillingRecord{}, newRowError(rowNum, ColIssueDate, issueRaw, ErrOutsideRetention)
	}

	codeRaw := s.Get(row, ColCode)
	code, err := ParseInt(codeRaw)
	if err != nil {
		return models.BillingRecord{}, newRowError(rowNum, ColCode, codeRaw, ErrInvalidCode)
	}

	daysLate, err := ParseInt(s.Get(row, ColDaysLate))
	if err != nil {
		daysLate = 0
	}

	return models.BillingRecord{
		Code:             code,
		ClientName:       s.Get(row, ColClient),
		IssueDate:        *issue,
		DueDate:          ParseDate(s.Get(row, ColDueDate), d.location),
		PaymentDate:      ParseDate(s.Get(row, ColPaymentDate), d.location),
		NoteAmount:       ParseCurrency(s.Get(row, ColNoteAmount)),
		InvoiceAmount:    ParseCurrency(s.Get(row, ColInvoiceAmount)),
		AmountDue:        ParseCurrency(s.Get(row, ColAmountDue)),
		InterestAndFines: ParseCurrency(s.Get(row, ColInterestAndFines)),
		AmountReceived:   ParseCurrency(s.Get(row, ColAmountReceived)),
		Discount:         ParseCurrency(s.Get(row, ColDiscount)),
		RevenueType:      s.Get(row, ColRevenueType),
		RevenueDetail:    s.Get(row, ColRevenueDetail),
		Status:           s.Get(row, ColStatus),
		PaidLate:         s.Get(row, ColPaidLate),
		Location:         s.Get(row, ColLocation),
		OriginLocation:   s.Get(row, ColOriginLocation),
		CompetencePeriod: s.Get(row, ColCompetence),
		DaysLate:         daysLate,
		InvoiceNumber:    s.Get(row, ColInvoiceNumber),
		BilledBy:         s.Get(row, ColBilledBy),
		Notes:            s.Get(row, ColNotes),
	}, nil
}

// Report summarizes a DecodeAll run.
type Report struct {
	Total   int
	Kept    int
	Dropped map[error]int // keyed by the package sentinels
	Errors  []*RowError
}

// DroppedCount is the number of rows not kept.
func (r Report) DroppedCount() int {
	return r.Total - r.Kept
}

// DecodeAll converts every row, skipping the ones that fail. firstRow is the
// sheet row number of rows[0] (2 for a range starting at A2).
func (d *Decoder) DecodeAll(rows [][]interface{}, firstRow int) ([]models.BillingRecord, Report) {
	report := Report{Total: len(rows), Dropped: make(map[error]int)}
	out := make([]models.BillingRecord, 0, len(rows))

	for i, row := range rows {
		rec, err := d.Decode(row, firstRow+i)
		if err != nil {
			var rowErr *RowError
			if errors.As(err, &rowErr) {
				report.Dropped[rowErr.Err]++
				report.Errors = append(report.Errors, rowErr)
			}
			continue
		}
		out = append(out, rec)
	}

	report.Kept = len(out)
	return out, report
}

// DecodeClients converts client master rows. Rows without an integer code
// are skipped and returned as errors.
func DecodeClients(rows [][]interface{}, firstRow int) ([]models.ClientMaster, []*RowError) {
	s := MustSchema(ClientColumns)

	var (
		out  []models.ClientMaster
		errs []*RowError
	)
	for i, row := range rows {
		codeRaw := s.Get(row, ColMasterCode)
		code, err := ParseInt(codeRaw)
		if err != nil {
			errs = append(errs, newRowError(firstRow+i, ColMasterCode, codeRaw, ErrInvalidCode))
			continue
		}
		out = append(out, models.ClientMaster{
			Code:      code,
			Name:      s.Get(row, ColMasterName),
			TaxID:     s.Get(row, ColMasterTaxID),
			Segment:   s.Get(row, ColMasterSegment),
			Location:  s.Get(row, ColMasterLocation),
			AdValorem: s.Get(row, ColMasterAdValorem),
			Active:    ParseBool(s.Get(row, ColMasterActive), true),
		})
	}
	return out, errs
}
