package mysql

import (
	"context"

	"agriloan/internal/domain/actor"

	"gorm.io/gorm"
)

type UserRepository struct{ db *gorm.DB }

func NewUserRepository(db *gorm.DB) *UserRepository { return &UserRepository{db: db} }

func (r *UserRepository) GetByUserID(ctx context.Context, userID string) (*actor.User, error) {
	var out actor.User
	res := r.db.WithContext(ctx).Where("user_id = ?", userID).First(&out)
	return &out, res.Error
}

func (r *UserRepository) ListByRole(ctx context.Context, role actor.Role) ([]actor.User, error) {
	var out []actor.User
	err := r.db.WithContext(ctx).
		Where("role = ? AND is_active = ?", role, true).
		Order("id").
		Find(&out).Error
	return out, err
}

func (r *UserRepository) ListOfficersInDistrict(ctx context.Context, districtID string) ([]actor.User, error) {
	var out []actor.User
	err := r.db.WithContext(ctx).
		Where("role = ? AND is_active = ? AND district_id = ?", actor.RoleLoanOfficer, true, districtID).
		Order("id").
		Find(&out).Error
	return out, err
}

type AssignmentRepository struct{ db *gorm.DB }

func NewAssignmentRepository(db *gorm.DB) *AssignmentRepository {
	return &AssignmentRepository{db: db}
}

func (r *AssignmentRepository) ListActiveOfficers(ctx context.Context, supervisorID string) ([]actor.User, error) {
	var out []actor.User
	err := r.db.WithContext(ctx).
		Model(&actor.User{}).
		Joins("JOIN supervisor_loan_officer slo ON slo.loan_officer_id = users.user_id").
		Where("slo.supervisor_id = ? AND slo.is_active = ?", supervisorID, true).
		Where("users.role = ? AND users.is_active = ?", actor.RoleLoanOfficer, true).
		Order("slo.assigned_date, users.id").
		Find(&out).Error
	return out, err
}
