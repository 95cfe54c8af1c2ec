package application

import (
	"context"
	"sort"
	"sync"
	"time"

	"agriloan/internal/domain/actor"
	domain "agriloan/internal/domain/application"
	"agriloan/internal/domain/reference"
	"agriloan/internal/domain/uow"
	"agriloan/internal/mlmodel"
	"agriloan/internal/testutil/actormock"
	"agriloan/internal/testutil/applicationmock"
	"agriloan/internal/testutil/predictionmock"
	"agriloan/internal/testutil/referencemock"
	"agriloan/internal/testutil/uowmock"
	"agriloan/internal/usecase/scope"
)

var _ domain.Repository = (*memApps)(nil)

// memApps is an in-memory application store whose SaveTransition is a real
// compare-and-swap on status.
type memApps struct {
	mu     sync.Mutex
	rows   map[string]domain.LoanApplication
	nextID uint64

	lastFilter domain.Filter
	lastLimit  int
	lastOffset int
	lastSince  time.Time
}

func newMemApps() *memApps { return &memApps{rows: map[string]domain.LoanApplication{}} }

func (m *memApps) put(a domain.LoanApplication) domain.LoanApplication {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	a.ID = m.nextID
	m.rows[a.ApplicationID] = a
	return a
}

func (m *memApps) get(applicationID string) domain.LoanApplication {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.rows[applicationID]
}

func (m *memApps) Create(_ context.Context, a *domain.LoanApplication) error {
	stored := m.put(*a)
	a.ID = stored.ID
	return nil
}

func (m *memApps) GetByApplicationID(_ context.Context, applicationID string) (*domain.LoanApplication, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.rows[applicationID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &a, nil
}

func (m *memApps) GetByApplicationIDForUpdate(ctx context.Context, applicationID string) (*domain.LoanApplication, error) {
	return m.GetByApplicationID(ctx, applicationID)
}

func (m *memApps) SaveTransition(_ context.Context, a *domain.LoanApplication, from domain.Status) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cur, ok := m.rows[a.ApplicationID]
	if !ok {
		return domain.ErrNotFound
	}
	if cur.Status != from {
		return domain.ErrStaleStatus
	}
	m.rows[a.ApplicationID] = *a
	return nil
}

func (m *memApps) ListByFarmer(_ context.Context, farmerID string, limit, offset int) ([]domain.LoanApplication, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lastLimit, m.lastOffset = limit, offset
	var out []domain.LoanApplication
	for _, a := range m.rows {
		if a.FarmerID == farmerID {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out, nil
}

func (m *memApps) List(_ context.Context, f domain.Filter) ([]domain.LoanApplication, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lastFilter = f
	var out []domain.LoanApplication
	for _, a := range m.rows {
		if contains(f.DistrictIDs, a.DistrictID) && (len(f.Statuses) == 0 || containsStatus(f.Statuses, a.Status)) {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *memApps) PredictionStats(_ context.Context, since time.Time) (domain.PredictionStats, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lastSince = since
	return domain.PredictionStats{Count: int64(len(m.rows))}, nil
}

func contains(xs []string, x string) bool {
	for _, v := range xs {
		if v == x {
			return true
		}
	}
	return false
}

func containsStatus(xs []domain.Status, x domain.Status) bool {
	for _, v := range xs {
		if v == x {
			return true
		}
	}
	return false
}

type fakeScorer struct {
	mu    sync.Mutex
	calls int
	fn    func(f mlmodel.Features) (mlmodel.Prediction, error)
}

func (s *fakeScorer) Predict(_ context.Context, f mlmodel.Features) (mlmodel.Prediction, error) {
	s.mu.Lock()
	s.calls++
	s.mu.Unlock()
	if s.fn != nil {
		return s.fn(f)
	}
	return mlmodel.Prediction{Amount: 1000, Confidence: 0.7, ModelVersion: "20240101_000000"}, nil
}

func sp(s string) *string { return &s }

func fp(f float64) *float64 { return &f }

var (
	farmer     = actor.Actor{ID: "farmer-1", Role: actor.RoleFarmer, DistrictID: "d-lilongwe"}
	farmer2    = actor.Actor{ID: "farmer-2", Role: actor.RoleFarmer, DistrictID: "d-lilongwe"}
	supervisor = actor.Actor{ID: "sup-1", Role: actor.RoleSupervisor, DistrictID: "d-lilongwe"}
	officer    = actor.Actor{ID: "off-lilongwe", Role: actor.RoleLoanOfficer, DistrictID: "d-lilongwe"}
	homeless   = actor.Actor{ID: "off-none", Role: actor.RoleLoanOfficer}
	admin      = actor.Actor{ID: "admin-1", Role: actor.RoleAdmin}
)

type harness struct {
	uc      *Usecase
	apps    *memApps
	reviews *applicationmock.ReviewRepo
	preds   *predictionmock.Repo
	yields  *applicationmock.YieldHistoryRepo
	scorer  *fakeScorer
	now     time.Time
}

func newHarness() *harness {
	users := &actormock.Users{All: []actor.User{
		{UserID: "farmer-1", FirstName: "Chikondi", LastName: "Banda", Role: actor.RoleFarmer, DistrictID: sp("d-lilongwe"), IsActive: true},
		{UserID: "sup-1", FirstName: "Thoko", LastName: "Phiri", Role: actor.RoleSupervisor, DistrictID: sp("d-lilongwe"), IsActive: true},
		{UserID: "off-lilongwe", FirstName: "Mphatso", LastName: "Mwale", Role: actor.RoleLoanOfficer, DistrictID: sp("d-lilongwe"), IsActive: true},
		{UserID: "off-zomba", FirstName: "Kondwani", LastName: "Gondwe", Role: actor.RoleLoanOfficer, DistrictID: sp("d-zomba"), IsActive: true},
		{UserID: "off-blantyre", FirstName: "Tiwonge", LastName: "Nyirenda", Role: actor.RoleLoanOfficer, DistrictID: sp("d-blantyre"), IsActive: true},
	}}
	assignments := &actormock.Assignments{Users: users, Rows: []actor.SupervisorAssignment{
		{SupervisorID: "sup-1", LoanOfficerID: "off-zomba", IsActive: true},
		{SupervisorID: "sup-1", LoanOfficerID: "off-blantyre", IsActive: false},
	}}
	districts := &referencemock.Districts{All: []reference.District{
		{DistrictID: "d-lilongwe", Name: "Lilongwe", Code: "LL", Region: "Central"},
		{DistrictID: "d-zomba", Name: "Zomba", Code: "ZA", Region: "Southern"},
		{DistrictID: "d-blantyre", Name: "Blantyre", Code: "BT", Region: "Southern"},
	}}
	crops := &referencemock.Crops{All: []reference.CropType{
		{CropID: "crop-maize", Name: "Maize", Code: "MZ"},
	}}

	h := &harness{
		apps:    newMemApps(),
		reviews: &applicationmock.ReviewRepo{},
		preds:   &predictionmock.Repo{},
		yields:  &applicationmock.YieldHistoryRepo{},
		scorer:  &fakeScorer{},
		now:     time.Date(2024, 5, 10, 9, 30, 0, 0, time.UTC),
	}
	repos := uow.Repos{Applications: h.apps, Reviews: h.reviews, YieldHistory: h.yields, Predictions: h.preds}
	h.uc = NewUsecase(Deps{
		Applications: h.apps,
		Reviews:      h.reviews,
		YieldHistory: h.yields,
		Users:        users,
		Districts:    districts,
		Crops:        crops,
		Scope:        scope.NewResolver(districts, users, assignments),
		Scorer:       h.scorer,
		UoW:          uowmock.Passthrough(repos),
		Now:          func() time.Time { return h.now },
	})
	return h
}

// seed stores an application in district with status st.
func (h *harness) seed(applicationID, district string, st domain.Status, predicted *float64) domain.LoanApplication {
	return h.apps.put(domain.LoanApplication{
		ApplicationID:    applicationID,
		FarmerID:         farmer.ID,
		CropID:           "crop-maize",
		DistrictID:       district,
		FarmSizeHectares: 2,
		ExpectedYieldKg:  1000,
		ExpectedRevenue:  150000,
		Status:           st,
		PredictedAmount:  predicted,
	})
}
