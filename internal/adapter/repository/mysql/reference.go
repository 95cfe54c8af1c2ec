package mysql

import (
	"context"

	"agriloan/internal/domain/reference"

	"gorm.io/gorm"
)

type DistrictRepository struct{ db *gorm.DB }

func NewDistrictRepository(db *gorm.DB) *DistrictRepository { return &DistrictRepository{db: db} }

func (r *DistrictRepository) GetByDistrictID(ctx context.Context, districtID string) (*reference.District, error) {
	var out reference.District
	res := r.db.WithContext(ctx).Where("district_id = ?", districtID).First(&out)
	return &out, res.Error
}

func (r *DistrictRepository) List(ctx context.Context) ([]reference.District, error) {
	var out []reference.District
	err := r.db.WithContext(ctx).Order("name").Find(&out).Error
	return out, err
}

type CropRepository struct{ db *gorm.DB }

func NewCropRepository(db *gorm.DB) *CropRepository { return &CropRepository{db: db} }

func (r *CropRepository) GetByNameOrCode(ctx context.Context, ident string) (*reference.CropType, error) {
	var out reference.CropType
	res := r.db.WithContext(ctx).
		Where("LOWER(name) = LOWER(?) OR code = ?", ident, ident).
		First(&out)
	return &out, res.Error
}

func (r *CropRepository) GetByCropID(ctx context.Context, cropID string) (*reference.CropType, error) {
	var out reference.CropType
	res := r.db.WithContext(ctx).Where("crop_id = ?", cropID).First(&out)
	return &out, res.Error
}
