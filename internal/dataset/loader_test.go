package dataset

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"billing/internal/metrics"
	"billing/internal/records"
)

type fakeReader struct {
	mu     sync.Mutex
	ranges map[string][][]interface{}
	errs   map[string]error
	calls  []string
}

func (f *fakeReader) ReadRange(_ context.Context, rangeSpec string) ([][]interface{}, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, rangeSpec)
	if err := f.errs[rangeSpec]; err != nil {
		return nil, err
	}
	return f.ranges[rangeSpec], nil
}

func row(cells map[string]string) []interface{} {
	out := make([]interface{}, len(records.BillingColumns))
	for i, col := range records.BillingColumns {
		if v, ok := cells[col]; ok {
			out[i] = v
		}
	}
	return out
}

var loaderNow = time.Date(2024, time.July, 1, 12, 0, 0, 0, time.UTC)

func newTestLoader(r RangeReader) *Loader {
	return NewLoader(r, Options{
		BillingRange: "BaseReceber!A2:AB",
		ClientRange:  "BaseClientes!A2:G",
		Location:     time.UTC,
		Now:          func() time.Time { return loaderNow },
	})
}

func TestLoad(t *testing.T) {
	reader := &fakeReader{ranges: map[string][][]interface{}{
		"BaseReceber!A2:AB": {
			row(map[string]string{records.ColCode: "1", records.ColClient: "Acme", records.ColIssueDate: "01/01/2024", records.ColInvoiceAmount: "R$ 100,00", records.ColRevenueType: "Armazenagem"}),
			row(map[string]string{records.ColCode: "1", records.ColClient: "Acme", records.ColIssueDate: "01/06/2024", records.ColInvoiceAmount: "R$ 200,00", records.ColRevenueType: "Armazenagem"}),
			row(map[string]string{records.ColCode: "x", records.ColIssueDate: "01/06/2024"}),
		},
		"BaseClientes!A2:G": {
			{"1", "Acme", "00.000.000/0001-00", "Varejo", "CD VIANA", "0,30%", "Sim"},
		},
	}}

	snap, err := newTestLoader(reader).Load(context.Background())
	require.NoError(t, err)

	assert.Len(t, snap.Records, 2)
	assert.Equal(t, 3, snap.Report.Total)
	assert.Equal(t, 1, snap.Report.Dropped[records.ErrInvalidCode])
	assert.Equal(t, 4, snap.Report.Errors[0].Row)
	assert.Equal(t, loaderNow, snap.LoadedAt)
	assert.ElementsMatch(t, []string{"BaseReceber!A2:AB", "BaseClientes!A2:G"}, reader.calls)

	master, ok := snap.Client(1)
	require.True(t, ok)
	assert.Equal(t, "0,30%", master.AdValorem)

	engine := snap.Engine(metrics.DefaultRatingConfig())
	assert.Equal(t, metrics.CategoryGoodPayer, engine.Classify("Acme"))
}

func TestLoadReadError(t *testing.T) {
	boom := errors.New("quota exceeded")
	reader := &fakeReader{errs: map[string]error{"BaseClientes!A2:G": boom}}

	_, err := newTestLoader(reader).Load(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), "client range")
}

func TestLoadWithoutClientRange(t *testing.T) {
	reader := &fakeReader{}
	l := NewLoader(reader, Options{BillingRange: "BaseReceber!A2:AB"})

	snap, err := l.Load(context.Background())
	require.NoError(t, err)
	assert.Empty(t, snap.Records)
	assert.Empty(t, snap.Clients)
	assert.Equal(t, []string{"BaseReceber!A2:AB"}, reader.calls)
}

func TestLoadRequiresBillingRange(t *testing.T) {
	_, err := NewLoader(&fakeReader{}, Options{}).Load(context.Background())
	assert.Error(t, err)
}

func TestFirstRow(t *testing.T) {
	assert.Equal(t, 2, FirstRow("BaseReceber!A2:AB"))
	assert.Equal(t, 10, FirstRow("'Base Receber'!C10:D"))
	assert.Equal(t, 1, FirstRow("BaseReceber!A:AB"))
	assert.Equal(t, 1, FirstRow(""))
}
