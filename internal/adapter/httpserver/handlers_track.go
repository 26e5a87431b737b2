package httpserver

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/pscheid92/playtime/internal/domain"
	apperrors "github.com/pscheid92/playtime/internal/platform/errors"
)

// handleTrack runs one tick and answers with the plain-text report. External schedulers
// (cron jobs, uptime pingers) hit this route.
func (s *Server) handleTrack(c echo.Context) error {
	report, err := s.tracker.RunTick(c.Request().Context())
	switch {
	case errors.Is(err, domain.ErrTickInProgress):
		return apperrors.ConflictError("a tick is already running", err)
	case errors.Is(err, domain.ErrPresenceUnavailable):
		return apperrors.ExternalError("could not fetch Roblox status", err).
			WithField("failed", report.Failed)
	case err != nil:
		return apperrors.InternalError("tick failed", err)
	}

	if err := c.String(http.StatusOK, report.String()); err != nil {
		return fmt.Errorf("failed to write tick report: %w", err)
	}
	return nil
}
