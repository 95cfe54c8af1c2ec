package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	stdhttp "net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"agriloan/internal/adapter/middleware"
	"agriloan/internal/domain/actor"
	"agriloan/internal/domain/apperr"
	domain "agriloan/internal/domain/application"
	appuc "agriloan/internal/usecase/application"

	"github.com/labstack/echo/v4"
)

// -------- helpers --------

type fakeApps struct {
	SubmitFn   func(ctx context.Context, a actor.Actor, in appuc.SubmitInput) (*appuc.ApplicationDTO, error)
	AssignFn   func(ctx context.Context, a actor.Actor, in appuc.AssignInput) (*appuc.ApplicationDTO, error)
	DecideFn   func(ctx context.Context, a actor.Actor, in appuc.DecideInput) (*appuc.ApplicationDTO, error)
	GetFn      func(ctx context.Context, a actor.Actor, id string) (*appuc.ApplicationDTO, error)
	ListFn     func(ctx context.Context, a actor.Actor, in appuc.ListInput) ([]appuc.ApplicationDTO, error)
	PendingFn  func(ctx context.Context, a actor.Actor, limit, offset int) ([]appuc.ApplicationDTO, error)
	OfficersFn func(ctx context.Context, a actor.Actor) ([]actor.User, error)
}

func (f *fakeApps) Submit(ctx context.Context, a actor.Actor, in appuc.SubmitInput) (*appuc.ApplicationDTO, error) {
	return f.SubmitFn(ctx, a, in)
}
func (f *fakeApps) Assign(ctx context.Context, a actor.Actor, in appuc.AssignInput) (*appuc.ApplicationDTO, error) {
	return f.AssignFn(ctx, a, in)
}
func (f *fakeApps) Decide(ctx context.Context, a actor.Actor, in appuc.DecideInput) (*appuc.ApplicationDTO, error) {
	return f.DecideFn(ctx, a, in)
}
func (f *fakeApps) Get(ctx context.Context, a actor.Actor, id string) (*appuc.ApplicationDTO, error) {
	return f.GetFn(ctx, a, id)
}
func (f *fakeApps) List(ctx context.Context, a actor.Actor, in appuc.ListInput) ([]appuc.ApplicationDTO, error) {
	return f.ListFn(ctx, a, in)
}
func (f *fakeApps) PendingQueue(ctx context.Context, a actor.Actor, limit, offset int) ([]appuc.ApplicationDTO, error) {
	return f.PendingFn(ctx, a, limit, offset)
}
func (f *fakeApps) Officers(ctx context.Context, a actor.Actor) ([]actor.User, error) {
	return f.OfficersFn(ctx, a)
}

var (
	testAppID  = strings.Repeat("a", 32)
	farmer     = actor.Actor{ID: "farmer-1", Role: actor.RoleFarmer, DistrictID: "d-1"}
	supervisor = actor.Actor{ID: "sup-1", Role: actor.RoleSupervisor, DistrictID: "d-1"}
	admin      = actor.Actor{ID: "admin-1", Role: actor.RoleAdmin}
)

func newEchoWithValidator() *echo.Echo {
	e := echo.New()
	e.Validator = NewValidator()
	return e
}

func mustJSON(v any) *bytes.Reader {
	b, _ := json.Marshal(v)
	return bytes.NewReader(b)
}

// newCtx builds a context with an optional actor and path params.
func newCtx(e *echo.Echo, method, target string, body any, who *actor.Actor, params ...string) (echo.Context, *httptest.ResponseRecorder) {
	var req *stdhttp.Request
	switch b := body.(type) {
	case nil:
		req = httptest.NewRequest(method, target, nil)
	case string:
		req = httptest.NewRequest(method, target, strings.NewReader(b))
	default:
		req = httptest.NewRequest(method, target, mustJSON(b))
	}
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	if who != nil {
		middleware.SetActor(c, *who)
	}
	if len(params) > 0 {
		var names, values []string
		for i := 0; i+1 < len(params); i += 2 {
			names = append(names, params[i])
			values = append(values, params[i+1])
		}
		c.SetParamNames(names...)
		c.SetParamValues(values...)
	}
	return c, rec
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) ErrorResponse {
	t.Helper()
	var er ErrorResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &er); err != nil {
		t.Fatalf("bad error json: %v; raw=%s", err, rec.Body.String())
	}
	return er
}

// -------- tests --------

func TestSubmit_Success(t *testing.T) {
	e := newEchoWithValidator()
	var got appuc.SubmitInput
	svc := &fakeApps{SubmitFn: func(ctx context.Context, a actor.Actor, in appuc.SubmitInput) (*appuc.ApplicationDTO, error) {
		if a.ID != farmer.ID {
			t.Fatalf("actor not passed through: %+v", a)
		}
		got = in
		amt := 20000.0
		return &appuc.ApplicationDTO{LoanApplication: domain.LoanApplication{
			ApplicationID:   testAppID,
			Status:          domain.StatusSubmitted,
			PredictedAmount: &amt,
		}}, nil
	}}
	h := NewApplicationHandler(svc)

	c, rec := newCtx(e, stdhttp.MethodPost, "/applications", map[string]any{
		"crop":               "Maize",
		"farm_size":          2.5,
		"expected_yield_kgs": 1000,
		"expected_yield_mk":  150000,
		"past_yield_kgs":     900,
	}, &farmer)

	if err := h.Submit(c); err != nil {
		t.Fatalf("Submit error: %v", err)
	}
	if rec.Code != stdhttp.StatusCreated {
		t.Fatalf("status = %d, want 201 body=%s", rec.Code, rec.Body.String())
	}
	if got.Crop != "Maize" || got.FarmSize != 2.5 || got.PastYieldKg == nil || *got.PastYieldKg != 900 || got.PastRevenue != nil {
		t.Fatalf("input not bound: %+v", got)
	}
	var body map[string]any
	_ = json.Unmarshal(rec.Body.Bytes(), &body)
	if body["application_id"] != testAppID || body["status"] != "submitted" || body["predicted_amount_mwk"] != 20000.0 {
		t.Fatalf("unexpected body: %v", body)
	}
}

func TestSubmit_BindAndValidationErrors(t *testing.T) {
	e := newEchoWithValidator()
	h := NewApplicationHandler(&fakeApps{}) // never reached

	c, rec := newCtx(e, stdhttp.MethodPost, "/applications", `{"crop":`, &farmer)
	if err := h.Submit(c); err != nil {
		t.Fatalf("Submit error: %v", err)
	}
	if rec.Code != stdhttp.StatusBadRequest || decodeError(t, rec).Error != "invalid body" {
		t.Fatalf("broken json => want 400 invalid body, got %d %s", rec.Code, rec.Body.String())
	}

	c, rec = newCtx(e, stdhttp.MethodPost, "/applications", map[string]any{"crop": "Maize", "farm_size": -1}, &farmer)
	if err := h.Submit(c); err != nil {
		t.Fatalf("Submit error: %v", err)
	}
	if rec.Code != stdhttp.StatusUnprocessableEntity {
		t.Fatalf("status = %d, want 422", rec.Code)
	}
	er := decodeError(t, rec)
	if !containsFieldMsg(er.Details, "farm_size", "greater than 0") || !containsFieldMsg(er.Details, "expected_yield_mk", "greater than 0") {
		t.Fatalf("unexpected details: %+v", er.Details)
	}
}

func TestSubmit_NoActor(t *testing.T) {
	e := newEchoWithValidator()
	h := NewApplicationHandler(&fakeApps{})

	c, rec := newCtx(e, stdhttp.MethodPost, "/applications", map[string]any{}, nil)
	if err := h.Submit(c); err != nil {
		t.Fatalf("Submit error: %v", err)
	}
	if rec.Code != stdhttp.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rec.Code)
	}
}

func TestErrorMapping(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want int
	}{
		{"forbidden", apperr.Forbidden("district d-9"), stdhttp.StatusForbidden},
		{"validation", apperr.Invalid("override_reason required"), stdhttp.StatusUnprocessableEntity},
		{"conflict", apperr.Conflict("status approved"), stdhttp.StatusConflict},
		{"not found", apperr.NotFound("application"), stdhttp.StatusNotFound},
		{"dependency", apperr.Dependency("backup model", errors.New("disk full")), stdhttp.StatusBadGateway},
		{"unknown", errors.New("db exploded"), stdhttp.StatusInternalServerError},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			e := newEchoWithValidator()
			h := NewApplicationHandler(&fakeApps{GetFn: func(ctx context.Context, a actor.Actor, id string) (*appuc.ApplicationDTO, error) {
				return nil, tc.err
			}})
			c, rec := newCtx(e, stdhttp.MethodGet, "/applications/"+testAppID, nil, &supervisor, "id", testAppID)
			if err := h.Get(c); err != nil {
				t.Fatalf("Get error: %v", err)
			}
			if rec.Code != tc.want {
				t.Fatalf("status = %d, want %d", rec.Code, tc.want)
			}
			er := decodeError(t, rec)
			if tc.want == stdhttp.StatusInternalServerError && er.Error != "internal server error" {
				t.Fatalf("internal error leaked: %q", er.Error)
			}
		})
	}
}

func TestGet_InvalidID(t *testing.T) {
	e := newEchoWithValidator()
	h := NewApplicationHandler(&fakeApps{})

	c, rec := newCtx(e, stdhttp.MethodGet, "/applications/xyz", nil, &supervisor, "id", "xyz")
	if err := h.Get(c); err != nil {
		t.Fatalf("Get error: %v", err)
	}
	if rec.Code != stdhttp.StatusUnprocessableEntity {
		t.Fatalf("status = %d, want 422", rec.Code)
	}
}

func TestAssign_PassesPathAndBody(t *testing.T) {
	e := newEchoWithValidator()
	var got appuc.AssignInput
	h := NewApplicationHandler(&fakeApps{AssignFn: func(ctx context.Context, a actor.Actor, in appuc.AssignInput) (*appuc.ApplicationDTO, error) {
		got = in
		return &appuc.ApplicationDTO{LoanApplication: domain.LoanApplication{ApplicationID: in.ApplicationID, Status: domain.StatusUnderReview}}, nil
	}})

	c, rec := newCtx(e, stdhttp.MethodPost, "/applications/"+testAppID+"/assign", map[string]string{"officer_id": "off-1"}, &supervisor, "id", testAppID)
	if err := h.Assign(c); err != nil {
		t.Fatalf("Assign error: %v", err)
	}
	if rec.Code != stdhttp.StatusOK {
		t.Fatalf("status = %d, want 200 body=%s", rec.Code, rec.Body.String())
	}
	if got.ApplicationID != testAppID || got.OfficerID != "off-1" {
		t.Fatalf("unexpected input: %+v", got)
	}
}

func TestAssign_MissingOfficer(t *testing.T) {
	e := newEchoWithValidator()
	h := NewApplicationHandler(&fakeApps{})

	c, rec := newCtx(e, stdhttp.MethodPost, "/applications/"+testAppID+"/assign", map[string]string{}, &supervisor, "id", testAppID)
	if err := h.Assign(c); err != nil {
		t.Fatalf("Assign error: %v", err)
	}
	if rec.Code != stdhttp.StatusUnprocessableEntity || !containsFieldMsg(decodeError(t, rec).Details, "officer_id", "is required") {
		t.Fatalf("want 422 officer_id required, got %d %s", rec.Code, rec.Body.String())
	}
}

func TestDecide_OverrideMapped(t *testing.T) {
	e := newEchoWithValidator()
	var got appuc.DecideInput
	h := NewApplicationHandler(&fakeApps{DecideFn: func(ctx context.Context, a actor.Actor, in appuc.DecideInput) (*appuc.ApplicationDTO, error) {
		got = in
		return &appuc.ApplicationDTO{LoanApplication: domain.LoanApplication{ApplicationID: in.ApplicationID, Status: domain.StatusApproved}}, nil
	}})

	c, rec := newCtx(e, stdhttp.MethodPost, "/applications/"+testAppID+"/decision", map[string]any{
		"decision":        "approve",
		"override":        true,
		"amount":          50000,
		"override_reason": "field visit",
	}, &supervisor, "id", testAppID)
	if err := h.Decide(c); err != nil {
		t.Fatalf("Decide error: %v", err)
	}
	if rec.Code != stdhttp.StatusOK {
		t.Fatalf("status = %d body=%s", rec.Code, rec.Body.String())
	}
	want := appuc.DecideInput{
		ApplicationID:  testAppID,
		Verdict:        appuc.VerdictApprove,
		Override:       true,
		Amount:         50000,
		OverrideReason: "field visit",
	}
	if got != want {
		t.Fatalf("input = %+v, want %+v", got, want)
	}
}

func TestDecide_ValidationErrors(t *testing.T) {
	e := newEchoWithValidator()
	h := NewApplicationHandler(&fakeApps{})

	for name, body := range map[string]map[string]any{
		"unknown decision": {"decision": "maybe"},
		"negative amount":  {"decision": "approve", "override": true, "amount": -5, "override_reason": "x"},
		"three decimals":   {"decision": "approve", "override": true, "amount": 10.123, "override_reason": "x"},
	} {
		t.Run(name, func(t *testing.T) {
			c, rec := newCtx(e, stdhttp.MethodPost, "/applications/"+testAppID+"/decision", body, &supervisor, "id", testAppID)
			if err := h.Decide(c); err != nil {
				t.Fatalf("Decide error: %v", err)
			}
			if rec.Code != stdhttp.StatusUnprocessableEntity {
				t.Fatalf("status = %d, want 422", rec.Code)
			}
		})
	}
}

func TestList_BindsQuery(t *testing.T) {
	e := newEchoWithValidator()
	var got appuc.ListInput
	h := NewApplicationHandler(&fakeApps{ListFn: func(ctx context.Context, a actor.Actor, in appuc.ListInput) ([]appuc.ApplicationDTO, error) {
		got = in
		return []appuc.ApplicationDTO{}, nil
	}})

	c, rec := newCtx(e, stdhttp.MethodGet, "/applications?district_id=d-1&status=pending&sort_by=predicted_amount&sort_order=asc&limit=10&offset=20", nil, &supervisor)
	if err := h.List(c); err != nil {
		t.Fatalf("List error: %v", err)
	}
	if rec.Code != stdhttp.StatusOK || strings.TrimSpace(rec.Body.String()) != "[]" {
		t.Fatalf("unexpected response %d %s", rec.Code, rec.Body.String())
	}
	want := appuc.ListInput{DistrictID: "d-1", Status: "pending", SortBy: "predicted_amount", SortOrder: "asc", Limit: 10, Offset: 20}
	if got != want {
		t.Fatalf("query = %+v, want %+v", got, want)
	}

	c, rec = newCtx(e, stdhttp.MethodGet, "/applications?limit=ten", nil, &supervisor)
	if err := h.List(c); err != nil {
		t.Fatalf("List error: %v", err)
	}
	if rec.Code != stdhttp.StatusBadRequest {
		t.Fatalf("bad limit => want 400, got %d", rec.Code)
	}
}

func TestPending_Paging(t *testing.T) {
	e := newEchoWithValidator()
	var gotLimit, gotOffset int
	h := NewApplicationHandler(&fakeApps{PendingFn: func(ctx context.Context, a actor.Actor, limit, offset int) ([]appuc.ApplicationDTO, error) {
		gotLimit, gotOffset = limit, offset
		return nil, nil
	}})

	c, rec := newCtx(e, stdhttp.MethodGet, "/applications/pending?limit=5&offset=5", nil, &supervisor)
	if err := h.Pending(c); err != nil {
		t.Fatalf("Pending error: %v", err)
	}
	if rec.Code != stdhttp.StatusOK || gotLimit != 5 || gotOffset != 5 {
		t.Fatalf("unexpected %d limit=%d offset=%d", rec.Code, gotLimit, gotOffset)
	}

	c, rec = newCtx(e, stdhttp.MethodGet, "/applications/pending?limit=500", nil, &supervisor)
	if err := h.Pending(c); err != nil {
		t.Fatalf("Pending error: %v", err)
	}
	if rec.Code != stdhttp.StatusUnprocessableEntity {
		t.Fatalf("limit over 100 => want 422, got %d", rec.Code)
	}
}

func TestOfficers_Shape(t *testing.T) {
	e := newEchoWithValidator()
	d := "d-2"
	h := NewApplicationHandler(&fakeApps{OfficersFn: func(ctx context.Context, a actor.Actor) ([]actor.User, error) {
		return []actor.User{{UserID: "off-1", FirstName: "Chikondi", LastName: "Banda", DistrictID: &d}}, nil
	}})

	c, rec := newCtx(e, stdhttp.MethodGet, "/officers", nil, &supervisor)
	if err := h.Officers(c); err != nil {
		t.Fatalf("Officers error: %v", err)
	}
	want := `[{"user_id":"off-1","name":"Chikondi Banda","district_id":"d-2"}]`
	if strings.TrimSpace(rec.Body.String()) != want {
		t.Fatalf("body = %s, want %s", rec.Body.String(), want)
	}
}
