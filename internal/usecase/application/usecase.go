package application

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"gorm.io/gorm"

	"agriloan/internal/domain/actor"
	"agriloan/internal/domain/apperr"
	domain "agriloan/internal/domain/application"
	"agriloan/internal/domain/prediction"
	"agriloan/internal/domain/reference"
	"agriloan/internal/domain/uow"
	"agriloan/internal/mlmodel"
	"agriloan/internal/platform/metrics"
	"agriloan/internal/usecase/scope"
	"agriloan/pkg/id"
)

type Scorer interface {
	Predict(ctx context.Context, f mlmodel.Features) (mlmodel.Prediction, error)
}

type Scope interface {
	AccessibleDistricts(ctx context.Context, a actor.Actor) (scope.DistrictSet, error)
	ManagedOfficers(ctx context.Context, a actor.Actor) ([]actor.User, error)
	ManagedOfficer(ctx context.Context, a actor.Actor, officerID string) (*actor.User, error)
}

type Deps struct {
	Applications domain.Repository
	Reviews      domain.ReviewRepository
	YieldHistory domain.YieldHistoryRepository
	Users        actor.UserRepository
	Districts    reference.DistrictRepository
	Crops        reference.CropRepository
	Scope        Scope
	Scorer       Scorer
	UoW          uow.UnitOfWork
	Metrics      *metrics.Metrics
	Fallback     FallbackPolicy
	Now          func() time.Time
}

type Usecase struct {
	d       Deps
	printer *message.Printer
}

func NewUsecase(d Deps) *Usecase {
	if d.Now == nil {
		d.Now = time.Now
	}
	if d.Fallback == (FallbackPolicy{}) {
		d.Fallback = DefaultFallback()
	}
	return &Usecase{d: d, printer: message.NewPrinter(language.English)}
}

func (u *Usecase) now() time.Time { return u.d.Now().UTC() }

// Submit scores and files a farmer's application. A scoring failure never
// blocks submission: the fallback policy prices it instead.
func (u *Usecase) Submit(ctx context.Context, a actor.Actor, in SubmitInput) (*ApplicationDTO, error) {
	if err := scope.Authorize(a, scope.ActionSubmit).Err(); err != nil {
		return nil, err
	}
	if !a.HasDistrict() {
		return nil, apperr.Invalid("farmer %s has no home district", a.ID)
	}

	f := mlmodel.Features{
		FarmSize:        in.FarmSize,
		Crop:            in.Crop,
		PastYieldKg:     deref(in.PastYieldKg),
		PastRevenue:     deref(in.PastRevenue),
		ExpectedYieldKg: in.ExpectedYieldKg,
		ExpectedRevenue: in.ExpectedRevenue,
	}
	if err := f.Validate(); err != nil {
		return nil, err
	}

	crop, err := u.d.Crops.GetByNameOrCode(ctx, strings.TrimSpace(in.Crop))
	if err != nil {
		return nil, lookupErr(err, "crop", in.Crop)
	}
	if _, err := u.d.Districts.GetByDistrictID(ctx, a.DistrictID); err != nil {
		if isNotFound(err) {
			return nil, apperr.Invalid("home district %s does not exist", a.DistrictID)
		}
		return nil, err
	}
	f.Crop = crop.Name

	now := u.now()
	rec := &prediction.Record{RecordID: id.NewID32()}
	start := time.Now()
	p, err := u.d.Scorer.Predict(ctx, f)
	rec.LatencyMS = time.Since(start).Milliseconds()
	switch {
	case err == nil:
		rec.ModelVersion = p.ModelVersion
		rec.Amount = cents(p.Amount)
		rec.Confidence = p.Confidence
	case errors.Is(err, apperr.ErrValidation):
		return nil, err
	default:
		rec.Fallback = true
		rec.Amount = u.d.Fallback.Amount(in.ExpectedRevenue)
		rec.Confidence = u.d.Fallback.Confidence
		rec.Error = err.Error()
		u.d.Metrics.IncFallback()
		slog.Warn("scoring failed, using fallback", "farmer_id", a.ID, "amount", rec.Amount, "error", err)
	}

	app := &domain.LoanApplication{
		ApplicationID:        id.NewID32(),
		FarmerID:             a.ID,
		CropID:               crop.CropID,
		DistrictID:           a.DistrictID,
		FarmSizeHectares:     in.FarmSize,
		ExpectedYieldKg:      in.ExpectedYieldKg,
		ExpectedRevenue:      in.ExpectedRevenue,
		PastYieldKg:          in.PastYieldKg,
		PastRevenue:          in.PastRevenue,
		Status:               domain.StatusSubmitted,
		PredictedAmount:      ptr(rec.Amount),
		PredictionConfidence: ptr(rec.Confidence),
		PredictionDate:       &now,
		PredictionFallback:   rec.Fallback,
		CreatedAt:            now,
	}
	rec.ApplicationID = app.ApplicationID

	err = u.d.UoW.WithinTx(ctx, func(r uow.Repos) error {
		if err := r.Applications.Create(ctx, app); err != nil {
			return err
		}
		return r.Predictions.Create(ctx, rec)
	})
	if err != nil {
		return nil, err
	}
	u.d.Metrics.IncTransition(string(domain.StatusSubmitted))

	// best effort; the application is already filed
	if in.PastYieldKg != nil && in.PastRevenue != nil && u.d.YieldHistory != nil {
		y := &domain.YieldHistory{
			FarmerID:   a.ID,
			CropID:     crop.CropID,
			Year:       now.Year() - 1,
			YieldKg:    *in.PastYieldKg,
			RevenueMWK: *in.PastRevenue,
		}
		if err := u.d.YieldHistory.Create(ctx, y); err != nil {
			slog.Warn("record yield history failed", "application_id", app.ApplicationID, "error", err)
		}
	}

	slog.Info("application submitted",
		"application_id", app.ApplicationID, "farmer_id", a.ID,
		"predicted_amount", rec.Amount, "fallback", rec.Fallback)
	return &ApplicationDTO{LoanApplication: *app}, nil
}

// Assign hands a pending application to a loan officer the caller manages.
func (u *Usecase) Assign(ctx context.Context, a actor.Actor, in AssignInput) (*ApplicationDTO, error) {
	if err := scope.Authorize(a, scope.ActionAssign).Err(); err != nil {
		return nil, err
	}
	if _, err := u.d.Users.GetByUserID(ctx, in.OfficerID); err != nil {
		return nil, lookupErr(err, "loan officer", in.OfficerID)
	}
	officer, err := u.d.Scope.ManagedOfficer(ctx, a, in.OfficerID)
	if err != nil {
		return nil, err
	}
	if officer == nil {
		return nil, apperr.Forbidden("officer %s is not managed by %s", in.OfficerID, a.ID)
	}
	districts, err := u.d.Scope.AccessibleDistricts(ctx, a)
	if err != nil {
		return nil, err
	}

	var out *ApplicationDTO
	err = u.d.UoW.WithinApplicationTx(ctx, in.ApplicationID, func(r uow.Repos, app *domain.LoanApplication) error {
		if !districts.Contains(app.DistrictID) {
			return apperr.Forbidden("application %s is outside your districts", app.ApplicationID)
		}
		if !app.Status.Pending() {
			return apperr.Conflict("cannot assign application in status %s", app.Status)
		}

		from := app.Status
		app.Status = domain.StatusUnderReview
		if err := r.Applications.SaveTransition(ctx, app, from); err != nil {
			return transitionErr(err)
		}
		review := &domain.ApplicationReview{
			ReviewID:      id.NewID32(),
			ApplicationID: app.ID,
			ReviewerID:    a.ID,
			ReviewDate:    u.now(),
			Comments:      "Assigned to " + officer.FullName() + " for review",
			Action:        domain.ActionRequestChanges,
		}
		if err := r.Reviews.Append(ctx, review); err != nil {
			return err
		}
		out = &ApplicationDTO{LoanApplication: *app, Reviews: []domain.ApplicationReview{*review}}
		return nil
	})
	if err != nil {
		return nil, lookupErr(err, "application", in.ApplicationID)
	}
	u.d.Metrics.IncTransition(string(domain.StatusUnderReview))
	slog.Info("application assigned", "application_id", in.ApplicationID, "officer_id", in.OfficerID, "by", a.ID)
	return out, nil
}

// Decide approves or rejects a pending application. The status check runs
// under the row lock and the write is conditional on it, so of two racing
// decisions only one lands.
func (u *Usecase) Decide(ctx context.Context, a actor.Actor, in DecideInput) (*ApplicationDTO, error) {
	if err := scope.Authorize(a, scope.ActionDecide).Err(); err != nil {
		return nil, err
	}
	switch in.Verdict {
	case VerdictApprove:
		if in.Override {
			if in.Amount <= 0 {
				return nil, apperr.Invalid("override amount must be positive")
			}
			if strings.TrimSpace(in.OverrideReason) == "" {
				return nil, apperr.Invalid("override reason is required")
			}
		}
	case VerdictReject:
	default:
		return nil, apperr.Invalid("unknown decision %q", in.Verdict)
	}
	districts, err := u.d.Scope.AccessibleDistricts(ctx, a)
	if err != nil {
		return nil, err
	}

	var out *ApplicationDTO
	err = u.d.UoW.WithinApplicationTx(ctx, in.ApplicationID, func(r uow.Repos, app *domain.LoanApplication) error {
		if !districts.Contains(app.DistrictID) {
			return apperr.Forbidden("application %s is outside your districts", app.ApplicationID)
		}
		if !app.Status.Pending() {
			return apperr.Conflict("cannot %s application in status %s", in.Verdict, app.Status)
		}

		now := u.now()
		review := &domain.ApplicationReview{
			ReviewID:      id.NewID32(),
			ApplicationID: app.ID,
			ReviewerID:    a.ID,
			ReviewDate:    now,
			Comments:      strings.TrimSpace(in.Comments),
		}
		from := app.Status

		if in.Verdict == VerdictApprove {
			var amount float64
			if in.Override {
				amount = cents(in.Amount)
				app.OverrideReason = ptr(strings.TrimSpace(in.OverrideReason))
			} else {
				if app.PredictedAmount == nil {
					return apperr.Invalid("application %s has no predicted amount; approve with override", app.ApplicationID)
				}
				amount = *app.PredictedAmount
			}
			app.Status = domain.StatusApproved
			app.ApprovedAmount = ptr(amount)
			review.Action = domain.ActionRecommendApproval
			if review.Comments == "" {
				review.Comments = u.approvalComment(amount, in.Override)
			}
		} else {
			app.Status = domain.StatusRejected
			review.Action = domain.ActionReject
			if review.Comments == "" {
				review.Comments = "Application rejected"
			}
		}
		app.ApprovalDate = &now
		app.ApprovedBy = ptr(a.ID)

		if err := r.Applications.SaveTransition(ctx, app, from); err != nil {
			return transitionErr(err)
		}
		if err := r.Reviews.Append(ctx, review); err != nil {
			return err
		}
		out = &ApplicationDTO{LoanApplication: *app, Reviews: []domain.ApplicationReview{*review}}
		return nil
	})
	if err != nil {
		return nil, lookupErr(err, "application", in.ApplicationID)
	}
	u.d.Metrics.IncTransition(string(out.Status))
	slog.Info("application decided",
		"application_id", in.ApplicationID, "status", out.Status, "override", in.Override, "by", a.ID)
	return out, nil
}

func (u *Usecase) approvalComment(amount float64, override bool) string {
	suffix := "(auto-approved predicted amount)"
	if override {
		suffix = "(override)"
	}
	return u.printer.Sprintf("Approved for %.2f MWK %s", amount, suffix)
}

// Get returns one application with its reviews. Farmers only see their own;
// staff only see applications inside their districts.
func (u *Usecase) Get(ctx context.Context, a actor.Actor, applicationID string) (*ApplicationDTO, error) {
	app, err := u.d.Applications.GetByApplicationID(ctx, applicationID)
	if err != nil {
		return nil, lookupErr(err, "application", applicationID)
	}

	if a.Role == actor.RoleFarmer {
		if app.FarmerID != a.ID {
			return nil, apperr.NotFound("application %s", applicationID)
		}
	} else {
		if err := scope.Authorize(a, scope.ActionViewScope).Err(); err != nil {
			return nil, err
		}
		districts, err := u.d.Scope.AccessibleDistricts(ctx, a)
		if err != nil {
			return nil, err
		}
		if !districts.Contains(app.DistrictID) {
			return nil, apperr.Forbidden("application %s is outside your districts", applicationID)
		}
	}

	reviews, err := u.d.Reviews.ListByApplication(ctx, app.ID)
	if err != nil {
		return nil, err
	}
	return &ApplicationDTO{LoanApplication: *app, Reviews: reviews}, nil
}

// List is the farmer's own history or the staff view of their districts.
func (u *Usecase) List(ctx context.Context, a actor.Actor, in ListInput) ([]ApplicationDTO, error) {
	limit, err := pageLimit(in.Limit)
	if err != nil {
		return nil, err
	}
	if in.Offset < 0 {
		return nil, apperr.Invalid("offset must not be negative")
	}

	if a.Role == actor.RoleFarmer {
		if err := scope.Authorize(a, scope.ActionListOwn).Err(); err != nil {
			return nil, err
		}
		apps, err := u.d.Applications.ListByFarmer(ctx, a.ID, limit, in.Offset)
		if err != nil {
			return nil, err
		}
		return toDTOs(apps), nil
	}

	if err := scope.Authorize(a, scope.ActionViewScope).Err(); err != nil {
		return nil, err
	}
	f, err := u.scopedFilter(ctx, a, in.DistrictID)
	if err != nil {
		return nil, err
	}
	f.Limit, f.Offset = limit, in.Offset

	switch in.Status {
	case "":
	case "pending":
		f.Statuses = domain.PendingStatuses
	default:
		st, ok := domain.ParseStatus(in.Status)
		if !ok {
			return nil, apperr.Invalid("unknown status %q", in.Status)
		}
		f.Statuses = []domain.Status{st}
	}

	switch domain.SortField(in.SortBy) {
	case "", domain.SortByApplicationDate:
		f.SortBy = domain.SortByApplicationDate
	case domain.SortByPredictedAmount:
		f.SortBy = domain.SortByPredictedAmount
	default:
		return nil, apperr.Invalid("cannot sort by %q", in.SortBy)
	}
	switch strings.ToLower(in.SortOrder) {
	case "", "desc":
		f.Desc = true
	case "asc":
	default:
		return nil, apperr.Invalid("sort order must be asc or desc")
	}

	apps, err := u.d.Applications.List(ctx, f)
	if err != nil {
		return nil, err
	}
	return toDTOs(apps), nil
}

// PendingQueue lists submitted and under-review applications in scope,
// oldest first.
func (u *Usecase) PendingQueue(ctx context.Context, a actor.Actor, limit, offset int) ([]ApplicationDTO, error) {
	if err := scope.Authorize(a, scope.ActionDecide).Err(); err != nil {
		return nil, err
	}
	limit, err := pageLimit(limit)
	if err != nil {
		return nil, err
	}
	if offset < 0 {
		return nil, apperr.Invalid("offset must not be negative")
	}
	f, err := u.scopedFilter(ctx, a, "")
	if err != nil {
		return nil, err
	}
	f.Statuses = domain.PendingStatuses
	f.SortBy = domain.SortByApplicationDate
	f.Limit, f.Offset = limit, offset

	apps, err := u.d.Applications.List(ctx, f)
	if err != nil {
		return nil, err
	}
	return toDTOs(apps), nil
}

// Officers lists the loan officers a may assign applications to.
func (u *Usecase) Officers(ctx context.Context, a actor.Actor) ([]actor.User, error) {
	if err := scope.Authorize(a, scope.ActionAssign).Err(); err != nil {
		return nil, err
	}
	return u.d.Scope.ManagedOfficers(ctx, a)
}

// ModelMetrics summarises predictions stored over the last 24 hours.
func (u *Usecase) ModelMetrics(ctx context.Context) (domain.PredictionStats, error) {
	return u.d.Applications.PredictionStats(ctx, u.now().Add(-24*time.Hour))
}

func (u *Usecase) scopedFilter(ctx context.Context, a actor.Actor, districtID string) (domain.Filter, error) {
	districts, err := u.d.Scope.AccessibleDistricts(ctx, a)
	if err != nil {
		return domain.Filter{}, err
	}
	if districts.Empty() {
		return domain.Filter{}, apperr.Forbidden("%s %s has no accessible districts", a.Role, a.ID)
	}
	if districtID == "" {
		return domain.Filter{DistrictIDs: districts.Slice()}, nil
	}
	if !districts.Contains(districtID) {
		return domain.Filter{}, apperr.Forbidden("district %s is outside your districts", districtID)
	}
	return domain.Filter{DistrictIDs: []string{districtID}}, nil
}

func pageLimit(limit int) (int, error) {
	switch {
	case limit == 0:
		return defaultLimit, nil
	case limit < 0 || limit > maxLimit:
		return 0, apperr.Invalid("limit must be between 1 and %d", maxLimit)
	}
	return limit, nil
}

func toDTOs(apps []domain.LoanApplication) []ApplicationDTO {
	out := make([]ApplicationDTO, 0, len(apps))
	for _, a := range apps {
		out = append(out, ApplicationDTO{LoanApplication: a})
	}
	return out
}

func isNotFound(err error) bool {
	return errors.Is(err, gorm.ErrRecordNotFound) || errors.Is(err, domain.ErrNotFound)
}

func lookupErr(err error, what, key string) error {
	if isNotFound(err) {
		return apperr.NotFound("%s %s", what, key)
	}
	return err
}

func transitionErr(err error) error {
	if errors.Is(err, domain.ErrStaleStatus) {
		return apperr.Conflict("application status changed concurrently")
	}
	return err
}

func ptr[T any](v T) *T { return &v }

func deref(p *float64) float64 {
	if p == nil {
		return 0
	}
	return *p
}
