package http

import (
	"context"
	"net/http"
	"time"

	"finca/internal/auth"
	applog "finca/internal/log"
)

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

// handleReady checks every dependency with a short timeout.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	status := http.StatusOK
	results := make(map[string]string, len(s.checks))
	for _, c := range s.checks {
		if err := c.Check(ctx); err != nil {
			status = http.StatusServiceUnavailable
			results[c.Name] = err.Error()
			continue
		}
		results[c.Name] = "ok"
	}

	body := map[string]any{"status": "ready", "checks": results}
	if status != http.StatusOK {
		body["status"] = "unavailable"
	}
	NewResponse().Status(status).JSON(body).Write(w)
}

// handleLogout ends the current session and clears the cookie. Signing out
// without a session is not an error.
func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	if u := auth.FromContext(r.Context()); u != nil {
		if err := s.provider.SignOut(r.Context(), u); err != nil {
			applog.FromContext(r.Context()).WarnContext(r.Context(), "Sign out failed",
				applog.FieldOperation, applog.OpSignOut, applog.FieldError, err)
		}
	}
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookie,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	NewResponse().Status(http.StatusNoContent).Trigger(TriggerSignedOut, nil).Write(w)
}
