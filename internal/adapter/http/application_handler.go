package http

import (
	"context"
	"net/http"

	"agriloan/internal/domain/actor"
	appuc "agriloan/internal/usecase/application"

	"github.com/labstack/echo/v4"
)

// ApplicationService is the workflow surface the handlers drive.
type ApplicationService interface {
	Submit(ctx context.Context, a actor.Actor, in appuc.SubmitInput) (*appuc.ApplicationDTO, error)
	Assign(ctx context.Context, a actor.Actor, in appuc.AssignInput) (*appuc.ApplicationDTO, error)
	Decide(ctx context.Context, a actor.Actor, in appuc.DecideInput) (*appuc.ApplicationDTO, error)
	Get(ctx context.Context, a actor.Actor, applicationID string) (*appuc.ApplicationDTO, error)
	List(ctx context.Context, a actor.Actor, in appuc.ListInput) ([]appuc.ApplicationDTO, error)
	PendingQueue(ctx context.Context, a actor.Actor, limit, offset int) ([]appuc.ApplicationDTO, error)
	Officers(ctx context.Context, a actor.Actor) ([]actor.User, error)
}

type ApplicationHandler struct{ svc ApplicationService }

func NewApplicationHandler(svc ApplicationService) *ApplicationHandler {
	return &ApplicationHandler{svc: svc}
}

type applicationIDParam struct {
	ID string `param:"id" validate:"required,hex32"`
}

// pathID binds only the path so the request body stays unread.
func pathID(c echo.Context) (applicationIDParam, bool, error) {
	var p applicationIDParam
	if err := (&echo.DefaultBinder{}).BindPathParams(c, &p); err != nil {
		return p, false, c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid path"})
	}
	if err := c.Validate(&p); err != nil {
		return p, false, c.JSON(http.StatusUnprocessableEntity, ErrorResponse{
			Error:   "validation failed",
			Details: ToFieldErrors(err),
		})
	}
	return p, true, nil
}

type pageQuery struct {
	Limit  int `query:"limit" validate:"gte=0,lte=100"`
	Offset int `query:"offset" validate:"gte=0"`
}

type assignReq struct {
	OfficerID string `json:"officer_id" validate:"required"`
}

type decideReq struct {
	Decision       string  `json:"decision" validate:"required,oneof=approve reject"`
	Override       bool    `json:"override"`
	Amount         float64 `json:"amount" validate:"gte=0,dec2"`
	OverrideReason string  `json:"override_reason"`
	Comments       string  `json:"comments"`
}

func (h *ApplicationHandler) Submit(c echo.Context) error {
	a, err := currentActor(c)
	if err != nil {
		return respondError(c, err)
	}
	var req appuc.SubmitInput
	if ok, err := bindAndValidate(c, &req); !ok {
		return err
	}
	dto, err := h.svc.Submit(c.Request().Context(), a, req)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusCreated, dto)
}

func (h *ApplicationHandler) List(c echo.Context) error {
	a, err := currentActor(c)
	if err != nil {
		return respondError(c, err)
	}
	var req appuc.ListInput
	if err := (&echo.DefaultBinder{}).BindQueryParams(c, &req); err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid query"})
	}
	out, err := h.svc.List(c.Request().Context(), a, req)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, out)
}

func (h *ApplicationHandler) Get(c echo.Context) error {
	a, err := currentActor(c)
	if err != nil {
		return respondError(c, err)
	}
	p, ok, err := pathID(c)
	if !ok {
		return err
	}
	dto, err := h.svc.Get(c.Request().Context(), a, p.ID)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, dto)
}

func (h *ApplicationHandler) Assign(c echo.Context) error {
	a, err := currentActor(c)
	if err != nil {
		return respondError(c, err)
	}
	p, ok, err := pathID(c)
	if !ok {
		return err
	}
	var req assignReq
	if ok, err := bindAndValidate(c, &req); !ok {
		return err
	}
	dto, err := h.svc.Assign(c.Request().Context(), a, appuc.AssignInput{
		ApplicationID: p.ID,
		OfficerID:     req.OfficerID,
	})
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, dto)
}

func (h *ApplicationHandler) Decide(c echo.Context) error {
	a, err := currentActor(c)
	if err != nil {
		return respondError(c, err)
	}
	p, ok, err := pathID(c)
	if !ok {
		return err
	}
	var req decideReq
	if ok, err := bindAndValidate(c, &req); !ok {
		return err
	}
	dto, err := h.svc.Decide(c.Request().Context(), a, appuc.DecideInput{
		ApplicationID:  p.ID,
		Verdict:        appuc.Verdict(req.Decision),
		Override:       req.Override,
		Amount:         req.Amount,
		OverrideReason: req.OverrideReason,
		Comments:       req.Comments,
	})
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, dto)
}

func (h *ApplicationHandler) Pending(c echo.Context) error {
	a, err := currentActor(c)
	if err != nil {
		return respondError(c, err)
	}
	var q pageQuery
	if err := (&echo.DefaultBinder{}).BindQueryParams(c, &q); err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid query"})
	}
	if err := c.Validate(&q); err != nil {
		return c.JSON(http.StatusUnprocessableEntity, ErrorResponse{Error: "validation failed", Details: ToFieldErrors(err)})
	}
	out, err := h.svc.PendingQueue(c.Request().Context(), a, q.Limit, q.Offset)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, out)
}

type officerDTO struct {
	UserID     string `json:"user_id"`
	Name       string `json:"name"`
	DistrictID string `json:"district_id,omitempty"`
}

func (h *ApplicationHandler) Officers(c echo.Context) error {
	a, err := currentActor(c)
	if err != nil {
		return respondError(c, err)
	}
	users, err := h.svc.Officers(c.Request().Context(), a)
	if err != nil {
		return respondError(c, err)
	}
	out := make([]officerDTO, 0, len(users))
	for i := range users {
		out = append(out, officerDTO{
			UserID:     users[i].UserID,
			Name:       users[i].FullName(),
			DistrictID: users[i].HomeDistrict(),
		})
	}
	return c.JSON(http.StatusOK, out)
}
