package resolution

import (
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/ehr/surgichart/internal/platform/auth"
)

type Handler struct {
	orch *Orchestrator
}

func NewHandler(orch *Orchestrator) *Handler {
	return &Handler{orch: orch}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	g := api.Group("/resolutions", auth.RequireRole("anesthesiologist", "registrar"))
	g.POST("", h.Resolve)
	g.POST("/resume/existing", h.ResumeWithExisting)
	g.POST("/resume/update", h.ResumeWithUpdate)
	g.POST("/resume/new", h.ResumeForceNew)
	g.POST("/resume/continue", h.ContinueCommit)
	g.POST("/cancel", h.Cancel)
}

// resumeRequest names a pending submission held by the server and, for
// the reuse decisions, one of its candidates.
type resumeRequest struct {
	PendingID   uuid.UUID `json:"pending_id"`
	CandidateID uuid.UUID `json:"candidate_id"`
}

type continueRequest struct {
	ProgressID uuid.UUID `json:"progress_id"`
}

func (h *Handler) Resolve(c echo.Context) error {
	var sub Submission
	if err := c.Bind(&sub); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	res, err := h.orch.ResolveAndCreate(c.Request().Context(), sub)
	if err != nil {
		return h.fail(c, err)
	}
	status := http.StatusOK
	if res.Action == ActionPatientAndProcedureCreated || res.Action == ActionProcedureCreated {
		status = http.StatusCreated
	}
	return c.JSON(status, res)
}

func (h *Handler) ResumeWithExisting(c echo.Context) error {
	req, err := bindResume(c, true)
	if err != nil {
		return err
	}
	res, err := h.orch.ResumeWithExisting(c.Request().Context(), req.PendingID, req.CandidateID)
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(http.StatusCreated, res)
}

func (h *Handler) ResumeWithUpdate(c echo.Context) error {
	req, err := bindResume(c, true)
	if err != nil {
		return err
	}
	res, err := h.orch.ResumeWithUpdate(c.Request().Context(), req.PendingID, req.CandidateID)
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(http.StatusCreated, res)
}

func (h *Handler) ResumeForceNew(c echo.Context) error {
	req, err := bindResume(c, false)
	if err != nil {
		return err
	}
	res, err := h.orch.ResumeForceNew(c.Request().Context(), req.PendingID)
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(http.StatusCreated, res)
}

func (h *Handler) ContinueCommit(c echo.Context) error {
	var req continueRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if req.ProgressID == uuid.Nil {
		return echo.NewHTTPError(http.StatusBadRequest, "progress_id is required")
	}
	res, err := h.orch.ContinueCommit(c.Request().Context(), req.ProgressID)
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(http.StatusCreated, res)
}

func (h *Handler) Cancel(c echo.Context) error {
	req, err := bindResume(c, false)
	if err != nil {
		return err
	}
	if err := h.orch.Cancel(c.Request().Context(), req.PendingID); err != nil {
		return h.fail(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

func bindResume(c echo.Context, needCandidate bool) (*resumeRequest, error) {
	var req resumeRequest
	if err := c.Bind(&req); err != nil {
		return nil, echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if req.PendingID == uuid.Nil {
		return nil, echo.NewHTTPError(http.StatusBadRequest, "pending_id is required")
	}
	if needCandidate && req.CandidateID == uuid.Nil {
		return nil, echo.NewHTTPError(http.StatusBadRequest, "candidate_id is required")
	}
	return &req, nil
}

// fail maps resolution errors to responses. A partial commit is answered
// with the id of its held progress for /resume/continue.
func (h *Handler) fail(c echo.Context, err error) error {
	var pe *PartialCommitError
	if errors.As(err, &pe) {
		return c.JSON(http.StatusConflict, map[string]interface{}{
			"message":     "the record was only partially saved, continue to finish it",
			"step":        pe.Step,
			"remaining":   pe.Progress.Remaining(),
			"progress_id": pe.Progress.ID,
			"progress":    pe.Progress,
		})
	}
	var ve *ValidationError
	if errors.As(err, &ve) {
		return echo.NewHTTPError(http.StatusBadRequest, map[string]interface{}{
			"message": "invalid submission",
			"fields":  ve.Fields,
		})
	}
	switch {
	case errors.Is(err, ErrStorageUnavailable):
		return echo.NewHTTPError(http.StatusServiceUnavailable, "patient records are temporarily unavailable, please retry")
	case errors.Is(err, ErrUnknownCandidate):
		return echo.NewHTTPError(http.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, ErrPendingClosed), errors.Is(err, ErrProgressUnknown), errors.Is(err, ErrCommitComplete):
		return echo.NewHTTPError(http.StatusConflict, err.Error())
	}
	return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
}
