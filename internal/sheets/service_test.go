package sheets

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractSpreadsheetID(t *testing.T) {
	id, err := extractSpreadsheetID("https://docs.google.com/spreadsheets/d/1AbC-d_9/edit#gid=0")
	require.NoError(t, err)
	assert.Equal(t, "1AbC-d_9", id)

	_, err = extractSpreadsheetID("https://example.com/sheet")
	assert.Error(t, err)
}

func TestReadRange(t *testing.T) {
	var gotPath, gotKey string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotKey = r.URL.Query().Get("key")
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"range":          "BaseReceber!A2:AB3",
			"majorDimension": "ROWS",
			"values": [][]interface{}{
				{"1", "Acme"},
				{"2", "Beta"},
			},
		})
	}))
	defer srv.Close()

	svc, err := NewService(context.Background(), Config{
		SheetURL: "https://docs.google.com/spreadsheets/d/sheet-123/edit",
		APIKey:   "test-key",
		Endpoint: srv.URL + "/",
	})
	require.NoError(t, err)
	assert.Equal(t, "sheet-123", svc.SpreadsheetID())

	rows, err := svc.ReadRange(context.Background(), "BaseReceber!A2:AB")
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "Beta", rows[1][1])
	assert.True(t, strings.HasPrefix(gotPath, "/v4/spreadsheets/sheet-123/values/"), gotPath)
	assert.Equal(t, "test-key", gotKey)
}

func TestReadRangeUpstreamError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":{"code":403,"message":"denied"}}`, http.StatusForbidden)
	}))
	defer srv.Close()

	svc, err := NewService(context.Background(), Config{SheetID: "x", APIKey: "k", Endpoint: srv.URL + "/"})
	require.NoError(t, err)

	_, err = svc.ReadRange(context.Background(), "A1:B2")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ReadRange")
}

func TestNewServiceWithoutCredentials(t *testing.T) {
	t.Setenv("GOOGLE_APPLICATION_CREDENTIALS", "")
	t.Setenv("GOOGLE_CREDENTIALS", "")

	_, err := NewService(context.Background(), Config{SheetID: "x"})
	assert.ErrorIs(t, err, ErrNoCredentials)
}
