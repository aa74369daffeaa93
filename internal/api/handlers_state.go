package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/david/gsa-finder/internal/models"
	"github.com/david/gsa-finder/internal/state"
)

// ceilingRangeMessage is shown next to the ceiling inputs while the range
// is inverted.
const ceilingRangeMessage = "Ceiling Min must be less than or equal to Ceiling Max."

type stateResponse struct {
	state.Snapshot
	Query string `json:"query"`
}

func snapshotOf(sess *Session) stateResponse {
	return stateResponse{
		Snapshot: sess.Store.Snapshot(),
		Query:    sess.Location.Query().Encode(),
	}
}

func (s *Server) handleGetState(c echo.Context) error {
	return c.JSON(http.StatusOK, snapshotOf(sessionFrom(c)))
}

func (s *Server) handleReplaceDraft(c echo.Context) error {
	sess := sessionFrom(c)
	f := models.DefaultFilters()
	if err := c.Bind(&f); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid filters"})
	}
	sess.Store.SetDraft(c.Request().Context(), f)
	return c.JSON(http.StatusOK, snapshotOf(sess))
}

// handlePatchDraft merges the fields present in the body into the draft.
func (s *Server) handlePatchDraft(c echo.Context) error {
	sess := sessionFrom(c)
	body, err := io.ReadAll(c.Request().Body)
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid body"})
	}
	var probe map[string]json.RawMessage
	if err := json.Unmarshal(body, &probe); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid filters"})
	}

	var mergeErr error
	sess.Store.UpdateDraft(c.Request().Context(), func(f *models.Filters) {
		next := f.Clone()
		if mergeErr = json.Unmarshal(body, &next); mergeErr == nil {
			*f = next
		}
	})
	if mergeErr != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid filters"})
	}
	return c.JSON(http.StatusOK, snapshotOf(sess))
}

// handleApply commits the draft, or the filters in the body when one is
// sent. With wait=true the response is held until the apply lands.
func (s *Server) handleApply(c echo.Context) error {
	sess := sessionFrom(c)

	var target *models.Filters
	body, err := io.ReadAll(c.Request().Body)
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid body"})
	}
	if len(strings.TrimSpace(string(body))) > 0 {
		f := models.DefaultFilters()
		if err := json.Unmarshal(body, &f); err != nil {
			return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid filters"})
		}
		target = &f
	}

	candidate := sess.Store.Draft()
	if target != nil {
		candidate = *target
	}
	if err := candidate.Validate(); err != nil {
		if errors.Is(err, models.ErrCeilingRange) {
			return c.JSON(http.StatusBadRequest, map[string]string{"error": ceilingRangeMessage})
		}
		return c.JSON(http.StatusBadRequest, map[string]string{"error": err.Error()})
	}

	done := sess.Store.Apply(target)
	return s.respondApply(c, sess, done)
}

func (s *Server) respondApply(c echo.Context, sess *Session, done <-chan bool) error {
	if c.QueryParam("wait") != "true" {
		return c.JSON(http.StatusAccepted, snapshotOf(sess))
	}
	select {
	case landed := <-done:
		resp := map[string]any{
			"landed": landed,
			"state":  snapshotOf(sess),
		}
		return c.JSON(http.StatusOK, resp)
	case <-c.Request().Context().Done():
		return c.Request().Context().Err()
	}
}

func (s *Server) handleReset(c echo.Context) error {
	sess := sessionFrom(c)
	sess.Store.ResetAll(c.Request().Context())
	return c.JSON(http.StatusOK, snapshotOf(sess))
}

type sortRequest struct {
	SortBy  models.SortKey `json:"sortBy"`
	SortDir models.SortDir `json:"sortDir"`
}

func (s *Server) handleSort(c echo.Context) error {
	sess := sessionFrom(c)
	var req sortRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid sort"})
	}
	if (req.SortBy != "" && !req.SortBy.Valid()) || (req.SortDir != "" && !req.SortDir.Valid()) {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid sort"})
	}
	done := sess.Store.SetSort(c.Request().Context(), req.SortBy, req.SortDir)
	return s.respondApply(c, sess, done)
}

func (s *Server) handleListPresets(c echo.Context) error {
	return c.JSON(http.StatusOK, sessionFrom(c).Store.Presets())
}

type presetRequest struct {
	Name string `json:"name"`
}

func (s *Server) handleSavePreset(c echo.Context) error {
	sess := sessionFrom(c)
	var req presetRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid request"})
	}
	p, err := sess.Store.SavePreset(c.Request().Context(), req.Name)
	if errors.Is(err, state.ErrEmptyPresetName) {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Preset name is required."})
	}
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}
	return c.JSON(http.StatusCreated, p)
}

func (s *Server) handleLoadPreset(c echo.Context) error {
	sess := sessionFrom(c)
	name, err := url.PathUnescape(c.Param("name"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid preset name"})
	}
	if _, err := sess.Store.LoadPreset(c.Request().Context(), name); err != nil {
		if errors.Is(err, state.ErrPresetNotFound) {
			return c.JSON(http.StatusNotFound, map[string]string{"error": err.Error()})
		}
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}
	return c.JSON(http.StatusOK, snapshotOf(sess))
}

func (s *Server) handleSubmit(c echo.Context) error {
	return s.setStatus(c, models.StatusSubmitted)
}

type statusRequest struct {
	Status models.Status `json:"status"`
}

func (s *Server) handleSetStatus(c echo.Context) error {
	var req statusRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid request"})
	}
	return s.setStatus(c, req.Status)
}

func (s *Server) setStatus(c echo.Context, status models.Status) error {
	sess := sessionFrom(c)
	id := c.Param("id")
	if !s.knownID(id) {
		return c.JSON(http.StatusNotFound, map[string]string{"error": "Not found"})
	}
	if err := sess.Store.SetStatus(c.Request().Context(), id, status); err != nil {
		if errors.Is(err, state.ErrInvalidStatus) {
			return c.JSON(http.StatusBadRequest, map[string]string{"error": err.Error()})
		}
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}
	return c.JSON(http.StatusOK, map[string]any{
		"id":        id,
		"status":    status,
		"overrides": sess.Store.Overrides(),
	})
}

// knownID reports false only when the data is loaded and lacks id.
// Overrides for records of a future document are accepted while loading.
func (s *Server) knownID(id string) bool {
	if s.Data == nil {
		return true
	}
	opps, err := s.Data.Opportunities()
	if err != nil {
		return true
	}
	for _, o := range opps {
		if o.ID == id {
			return true
		}
	}
	return false
}
