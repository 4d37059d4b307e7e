package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"billing/internal/dataset"
	"billing/internal/metrics"
)

type dashboardInfo struct {
	ID    string `json:"id"`
	Slug  string `json:"slug"`
	Label string `json:"label"`
}

type dashboardResponse struct {
	Dashboard string    `json:"dashboard"`
	Label     string    `json:"label"`
	Period    string    `json:"period,omitempty"`
	DataAsOf  time.Time `json:"data_as_of"`
	metrics.Summary
	Comparison *metrics.PeriodDiff `json:"comparison,omitempty"`
}

// view is a dashboard and the period selected on it.
type view struct {
	dashboard metrics.Dashboard
	selection metrics.Selection
	selected  bool
}

func (s *Server) parseView(dashboardID, competence, from, to string) (view, error) {
	d := metrics.DashboardGlobal
	if dashboardID != "" {
		var err error
		if d, err = metrics.ParseDashboard(dashboardID); err != nil {
			return view{}, err
		}
	}
	sel, ok, err := metrics.ParseSelection(d.Location(), competence, from, to, s.location)
	if err != nil {
		return view{}, err
	}
	return view{dashboard: d, selection: sel, selected: ok}, nil
}

// dashboardView is the computed state of a view.
type dashboardView struct {
	snapshot   *dataset.Snapshot
	summary    metrics.Summary
	comparison *metrics.Comparison
}

func (s *Server) buildView(ctx context.Context, v view) (*dashboardView, error) {
	const op = "buildView"

	snap, err := s.dataset.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	engine := snap.Engine(s.rating)

	out := &dashboardView{snapshot: snap}
	if v.selected {
		cmp, err := engine.Compare(v.selection)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		out.comparison = &cmp
	}
	out.summary = engine.Summarize(v.selection.Filter())
	return out, nil
}

// writeViewError maps view parsing and building errors to a status code.
func writeViewError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, metrics.ErrUnknownDashboard):
		writeError(w, http.StatusNotFound, "unknown dashboard", nil)
	case errors.Is(err, metrics.ErrInvalidPeriod):
		writeError(w, http.StatusBadRequest, err.Error(), nil)
	case errors.Is(err, metrics.ErrUnknownPeriod):
		writeError(w, http.StatusNotFound, "competence period not present in dataset", nil)
	default:
		writeInternal(w, r, err, "Failed to build dashboard")
	}
}

func (s *Server) handleListDashboards(w http.ResponseWriter, _ *http.Request) {
	out := make([]dashboardInfo, 0, len(metrics.Dashboards))
	for _, d := range metrics.Dashboards {
		out = append(out, dashboardInfo{ID: d.ID(), Slug: d.Slug(), Label: d.Label()})
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	v, err := s.parseView(chi.URLParam(r, "dashboard"), q.Get("competence"), q.Get("from"), q.Get("to"))
	if err != nil {
		writeViewError(w, r, err)
		return
	}

	dv, err := s.buildView(r.Context(), v)
	if err != nil {
		writeViewError(w, r, err)
		return
	}

	resp := dashboardResponse{
		Dashboard: v.dashboard.ID(),
		Label:     v.dashboard.Label(),
		DataAsOf:  dv.snapshot.LoadedAt,
		Summary:   dv.summary,
	}
	if cmp := dv.comparison; cmp != nil {
		resp.Period = cmp.CurrentLabel
		if cmp.HasPrevious {
			diff := metrics.Diff(*cmp)
			resp.Comparison = &diff
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleListClients(w http.ResponseWriter, r *http.Request) {
	snap, err := s.dataset.Load(r.Context())
	if err != nil {
		writeInternal(w, r, err, "Failed to load billing data")
		return
	}
	clients := snap.Engine(s.rating).Clients()
	if clients == nil {
		clients = []metrics.ClientSummary{}
	}
	writeJSON(w, http.StatusOK, clients)
}

func (s *Server) handleClient(w http.ResponseWriter, r *http.Request) {
	code, err := strconv.Atoi(chi.URLParam(r, "code"))
	if err != nil || code <= 0 {
		writeError(w, http.StatusBadRequest, "client code must be a positive integer", map[string]string{"field": "code"})
		return
	}

	snap, err := s.dataset.Load(r.Context())
	if err != nil {
		writeInternal(w, r, err, "Failed to load billing data")
		return
	}

	profile, ok := snap.Engine(s.rating).ClientProfile(code, snap.Clients)
	if !ok {
		writeError(w, http.StatusNotFound, "client not found", nil)
		return
	}
	writeJSON(w, http.StatusOK, profile)
}
