package http

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"finca/internal/auth"
	"finca/internal/core"
	applog "finca/internal/log"
)

// maxRecent caps the dashboard recent parameter.
const maxRecent = 100

var errInvalidRecent = errors.New("must be a whole number between 0 and 100")

func (s *Server) handleContributors(w http.ResponseWriter, r *http.Request) {
	NewResponse().JSON(map[string]any{"contributors": s.ledger.Contributors()}).Write(w)
}

func (s *Server) handleListExpenses(w http.ResponseWriter, r *http.Request) {
	es, err := s.ledger.ListExpenses(r.Context())
	if err != nil {
		writeError(w, r, applog.OpList, err)
		return
	}
	NewResponse().JSON(map[string]any{"expenses": es}).Write(w)
}

func (s *Server) handleCreateExpense(w http.ResponseWriter, r *http.Request) {
	p, ok := parseBody(w, r)
	if !ok {
		return
	}
	in := core.ExpenseInput{
		Concept:     p.Get("concept"),
		Amount:      p.Get("amount"),
		Description: p.Get("description"),
	}
	e, err := s.ledger.CreateExpense(r.Context(), auth.FromContext(r.Context()), in)
	if err != nil {
		writeError(w, r, applog.OpCreate, err)
		return
	}
	NewResponse().
		Status(http.StatusCreated).
		TriggerRecord(TriggerExpenseCreated, e.ID).
		JSON(e).
		Write(w)
}

func (s *Server) handleDeleteExpense(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := s.ledger.DeleteExpense(r.Context(), auth.FromContext(r.Context()), id); err != nil {
		writeError(w, r, applog.OpDelete, err)
		return
	}
	NewResponse().
		Status(http.StatusNoContent).
		TriggerRecord(TriggerExpenseDeleted, id).
		Write(w)
}

func (s *Server) handleListContributions(w http.ResponseWriter, r *http.Request) {
	cs, err := s.ledger.ListContributions(r.Context())
	if err != nil {
		writeError(w, r, applog.OpList, err)
		return
	}
	NewResponse().JSON(map[string]any{"contributions": cs}).Write(w)
}

func (s *Server) handleCreateContribution(w http.ResponseWriter, r *http.Request) {
	p, ok := parseBody(w, r)
	if !ok {
		return
	}
	in := core.ContributionInput{
		Contributor: p.Get("contributor"),
		Amount:      p.Get("amount"),
		Concept:     p.Get("concept"),
	}
	c, err := s.ledger.CreateContribution(r.Context(), auth.FromContext(r.Context()), in)
	if err != nil {
		writeError(w, r, applog.OpCreate, err)
		return
	}
	NewResponse().
		Status(http.StatusCreated).
		TriggerRecord(TriggerContributionCreated, c.ID).
		JSON(c).
		Write(w)
}

func (s *Server) handleDeleteContribution(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := s.ledger.DeleteContribution(r.Context(), auth.FromContext(r.Context()), id); err != nil {
		writeError(w, r, applog.OpDelete, err)
		return
	}
	NewResponse().
		Status(http.StatusNoContent).
		TriggerRecord(TriggerContributionDeleted, id).
		Write(w)
}

// handleDashboard serves totals and recent records. recent defaults to the
// configured limit; 0 returns empty recent lists.
func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	recent := s.ledger.RecentLimit()
	if v := strings.TrimSpace(r.URL.Query().Get("recent")); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 || n > maxRecent {
			writeError(w, r, applog.OpDashboard, &core.ValidationError{Field: "recent", Err: errInvalidRecent})
			return
		}
		recent = n
	}
	d, err := s.ledger.Dashboard(r.Context(), recent)
	if err != nil {
		writeError(w, r, applog.OpDashboard, err)
		return
	}
	NewResponse().JSON(d).Write(w)
}

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	d, err := s.ledger.Refresh(r.Context())
	if err != nil {
		writeError(w, r, applog.OpRefresh, err)
		return
	}
	NewResponse().Trigger(TriggerDashboardRefresh, nil).JSON(d).Write(w)
}

// parseBody reads a JSON or form body, writing a 400 when it cannot be parsed.
func parseBody(w http.ResponseWriter, r *http.Request) (*RequestBodyParser, bool) {
	p := NewRequestBodyParser(w, r)
	if err := p.Parse(); err != nil {
		var mbe *http.MaxBytesError
		if errors.As(err, &mbe) {
			ErrorResponse(http.StatusRequestEntityTooLarge, "body_too_large", "Solicitud demasiado grande").Write(w)
			return nil, false
		}
		ErrorResponse(http.StatusBadRequest, "invalid_body", "Formato de solicitud no válido").Write(w)
		return nil, false
	}
	return p, true
}
