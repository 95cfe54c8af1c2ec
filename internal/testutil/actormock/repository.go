package actormock

import (
	"agriloan/internal/domain/actor"
	"context"

	"gorm.io/gorm"
)

var (
	_ actor.UserRepository       = (*Users)(nil)
	_ actor.AssignmentRepository = (*Assignments)(nil)
)

// Users serves lookups from an in-memory slice unless a Fn is set.
type Users struct {
	GetByUserIDFn            func(ctx context.Context, userID string) (*actor.User, error)
	ListByRoleFn             func(ctx context.Context, role actor.Role) ([]actor.User, error)
	ListOfficersInDistrictFn func(ctx context.Context, districtID string) ([]actor.User, error)

	All []actor.User
}

func (m *Users) GetByUserID(ctx context.Context, userID string) (*actor.User, error) {
	if m.GetByUserIDFn != nil {
		return m.GetByUserIDFn(ctx, userID)
	}
	for i := range m.All {
		if m.All[i].UserID == userID {
			u := m.All[i]
			return &u, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *Users) ListByRole(ctx context.Context, role actor.Role) ([]actor.User, error) {
	if m.ListByRoleFn != nil {
		return m.ListByRoleFn(ctx, role)
	}
	var out []actor.User
	for _, u := range m.All {
		if u.Role == role && u.IsActive {
			out = append(out, u)
		}
	}
	return out, nil
}

func (m *Users) ListOfficersInDistrict(ctx context.Context, districtID string) ([]actor.User, error) {
	if m.ListOfficersInDistrictFn != nil {
		return m.ListOfficersInDistrictFn(ctx, districtID)
	}
	var out []actor.User
	for _, u := range m.All {
		if u.Role == actor.RoleLoanOfficer && u.IsActive && u.HomeDistrict() == districtID {
			out = append(out, u)
		}
	}
	return out, nil
}

// Assignments joins Rows against Users.
type Assignments struct {
	ListActiveOfficersFn func(ctx context.Context, supervisorID string) ([]actor.User, error)

	Rows  []actor.SupervisorAssignment
	Users *Users
}

func (m *Assignments) ListActiveOfficers(ctx context.Context, supervisorID string) ([]actor.User, error) {
	if m.ListActiveOfficersFn != nil {
		return m.ListActiveOfficersFn(ctx, supervisorID)
	}
	var out []actor.User
	for _, row := range m.Rows {
		if row.SupervisorID != supervisorID || !row.IsActive || m.Users == nil {
			continue
		}
		if u, err := m.Users.GetByUserID(ctx, row.LoanOfficerID); err == nil && u.Role == actor.RoleLoanOfficer {
			out = append(out, *u)
		}
	}
	return out, nil
}
