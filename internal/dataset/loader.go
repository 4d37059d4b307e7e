// Package dataset fetches the billing spreadsheet and turns it into a
// snapshot the metrics engine can work on.
package dataset

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"billing/internal/logger"
	"billing/internal/metrics"
	"billing/internal/records"
	"billing/pkg/models"
)

// RangeReader reads a range of cell values, like sheets.Service.
type RangeReader interface {
	ReadRange(ctx context.Context, rangeSpec string) ([][]interface{}, error)
}

// Options configure a Loader.
type Options struct {
	BillingRange string         // e.g. "BaseReceber!A2:AB"
	ClientRange  string         // optional client master range
	Location     *time.Location // time zone of sheet dates, Local when nil
	Now          func() time.Time
}

// Snapshot is one fetch of the spreadsheet.
type Snapshot struct {
	Records  []models.BillingRecord
	Clients  []models.ClientMaster
	Report   records.Report
	LoadedAt time.Time
}

// Engine builds a metrics engine pinned to the snapshot time.
func (s *Snapshot) Engine(cfg metrics.RatingConfig) *metrics.Engine {
	return metrics.NewEngine(s.Records, s.LoadedAt, cfg)
}

// Client returns the master record for code.
func (s *Snapshot) Client(code int) (models.ClientMaster, bool) {
	for _, c := range s.Clients {
		if c.Code == code {
			return c, true
		}
	}
	return models.ClientMaster{}, false
}

// Loader reads billing data from a spreadsheet. Every Load is a fresh fetch.
type Loader struct {
	reader RangeReader
	opts   Options
	log    zerolog.Logger
}

// NewLoader creates a loader reading through reader.
func NewLoader(reader RangeReader, opts Options) *Loader {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Location == nil {
		opts.Location = time.Local
	}
	return &Loader{
		reader: reader,
		opts:   opts,
		log:    logger.WithComponent("dataset"),
	}
}

// Load fetches the billing and client ranges concurrently and normalizes them.
func (l *Loader) Load(ctx context.Context) (*Snapshot, error) {
	const op = "Load"

	if l.opts.BillingRange == "" {
		return nil, fmt.Errorf("%s: billing range is not configured", op)
	}

	var billingRows, clientRows [][]interface{}
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		rows, err := l.reader.ReadRange(gctx, l.opts.BillingRange)
		if err != nil {
			return fmt.Errorf("failed to read billing range: %w", err)
		}
		billingRows = rows
		return nil
	})
	if l.opts.ClientRange != "" {
		g.Go(func() error {
			rows, err := l.reader.ReadRange(gctx, l.opts.ClientRange)
			if err != nil {
				return fmt.Errorf("failed to read client range: %w", err)
			}
			clientRows = rows
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	now := l.opts.Now()
	dec := records.NewDecoder(now, records.WithLocation(l.opts.Location))
	recs, report := dec.DecodeAll(billingRows, FirstRow(l.opts.BillingRange))
	l.logReport(report, dec.Cutoff())

	clients, clientErrs := records.DecodeClients(clientRows, FirstRow(l.opts.ClientRange))
	for _, e := range clientErrs {
		l.log.Warn().
			Int("row", e.Row).
			Str("value", e.Value).
			Msg("Skipping client master row with invalid code")
	}

	if len(recs) == 0 {
		l.log.Warn().Str("range", l.opts.BillingRange).Msg("No billing records in retention window")
	}

	return &Snapshot{
		Records:  recs,
		Clients:  clients,
		Report:   report,
		LoadedAt: now,
	}, nil
}

func (l *Loader) logReport(report records.Report, cutoff time.Time) {
	evt := l.log.Info().
		Int("total_rows", report.Total).
		Int("kept", report.Kept).
		Int("dropped", report.DroppedCount()).
		Str("cutoff", cutoff.Format("2006-01-02"))
	for reason, n := range report.Dropped {
		evt = evt.Int(reason.Error(), n)
	}
	evt.Msg("Billing records loaded")

	for _, e := range report.Errors {
		if e.Err == records.ErrOutsideRetention {
			continue
		}
		l.log.Debug().
			Int("row", e.Row).
			Str("column", e.Column).
			Str("value", e.Value).
			Err(e.Err).
			Msg("Dropped billing row")
	}
}

var firstRowPattern = regexp.MustCompile(`![A-Za-z]+(\d+)`)

// FirstRow is the sheet row number where rangeSpec starts, 1 when the range
// names whole columns.
func FirstRow(rangeSpec string) int {
	m := firstRowPattern.FindStringSubmatch(rangeSpec)
	if len(m) < 2 {
		return 1
	}
	n, err := strconv.Atoi(m[1])
	if err != nil || n < 1 {
		return 1
	}
	return n
}
