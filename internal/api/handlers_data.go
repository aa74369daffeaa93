package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/david/gsa-finder/internal/export"
	"github.com/david/gsa-finder/internal/filtering"
	"github.com/david/gsa-finder/internal/metrics"
	"github.com/david/gsa-finder/internal/models"
	"github.com/david/gsa-finder/internal/source"
)

// dataUnavailable answers while the document is loading or failed to load.
func (s *Server) dataUnavailable(c echo.Context, err error) error {
	resp := map[string]any{"error": err.Error()}
	if s.Data != nil {
		resp["data"] = s.Data.Status()
	}
	return c.JSON(http.StatusServiceUnavailable, resp)
}

func (s *Server) opportunities() ([]models.Opportunity, error) {
	if s.Data == nil {
		return nil, source.ErrNotLoaded
	}
	return s.Data.Opportunities()
}

// visible derives the list shown to the session: overrides, then the
// applied filters, then the applied sort.
func (s *Server) visible(sess *Session) ([]models.Opportunity, models.Filters, error) {
	opps, err := s.opportunities()
	if err != nil {
		return nil, models.Filters{}, err
	}
	applied := sess.Store.Applied()
	derived := filtering.ApplyOverrides(opps, sess.Store.Overrides())
	filtered := filtering.FilterAt(derived, applied, s.now())
	return filtering.Sort(filtered, applied.SortBy, applied.SortDir), applied, nil
}

type resultItem struct {
	models.Opportunity
	DueLabel      string              `json:"dueLabel"`
	TitleSegments []filtering.Segment `json:"titleSegments"`
	TitleHTML     string              `json:"titleHtml"`
}

type listResponse struct {
	Items   []resultItem   `json:"items"`
	Total   int            `json:"total"`
	Applied models.Filters `json:"applied"`
}

func (s *Server) handleListOpportunities(c echo.Context) error {
	sess := sessionFrom(c)
	opps, applied, err := s.visible(sess)
	if err != nil {
		return s.dataUnavailable(c, err)
	}

	now := s.now()
	items := make([]resultItem, 0, len(opps))
	for _, o := range opps {
		items = append(items, resultItem{
			Opportunity:   o,
			DueLabel:      filtering.DueLabel(o.DueDate.Time, now),
			TitleSegments: filtering.Highlight(o.Title, applied.Keywords),
			TitleHTML:     filtering.HighlightHTML(o.Title, applied.Keywords),
		})
	}
	return c.JSON(http.StatusOK, listResponse{Items: items, Total: len(items), Applied: applied})
}

func (s *Server) handleProgress(c echo.Context) error {
	opps, _, err := s.visible(sessionFrom(c))
	if err != nil {
		return s.dataUnavailable(c, err)
	}
	return c.JSON(http.StatusOK, filtering.Project(opps))
}

func (s *Server) handleExport(c echo.Context) error {
	opps, _, err := s.visible(sessionFrom(c))
	if err != nil {
		return s.dataUnavailable(c, err)
	}
	metrics.RecordExport()

	c.Response().Header().Set(echo.HeaderContentDisposition, fmt.Sprintf("attachment; filename=%q", export.Filename))
	c.Response().Header().Set(echo.HeaderContentType, export.ContentType)
	c.Response().WriteHeader(http.StatusOK)
	return export.WriteCSV(c.Response(), opps)
}

func (s *Server) handleRawData(c echo.Context) error {
	opps, err := s.opportunities()
	if err != nil {
		return s.dataUnavailable(c, err)
	}
	return c.JSON(http.StatusOK, opps)
}

func (s *Server) handleDataStatus(c echo.Context) error {
	if s.Data == nil {
		return c.JSON(http.StatusServiceUnavailable, map[string]string{"error": source.ErrNotLoaded.Error()})
	}
	return c.JSON(http.StatusOK, s.Data.Status())
}

// handleDataReload refetches the document. Only one reload runs at a time.
func (s *Server) handleDataReload(c echo.Context) error {
	if s.Data == nil {
		return c.JSON(http.StatusServiceUnavailable, map[string]string{"error": source.ErrNotLoaded.Error()})
	}

	select {
	case s.reload <- struct{}{}:
	default:
		return c.JSON(http.StatusConflict, map[string]string{"error": "A reload is already running"})
	}
	defer func() { <-s.reload }()

	// Detached from the request so a dropped client does not leave the
	// dataset half-loaded.
	ctx, cancel := context.WithTimeout(context.WithoutCancel(c.Request().Context()), 2*time.Minute)
	defer cancel()

	if err := s.Data.Load(ctx); err != nil {
		c.Logger().Errorf("Data reload failed: %v", err)
		return c.JSON(http.StatusServiceUnavailable, s.Data.Status())
	}
	return c.JSON(http.StatusOK, s.Data.Status())
}
