package referencemock

import (
	"agriloan/internal/domain/reference"
	"context"
	"strings"

	"gorm.io/gorm"
)

var (
	_ reference.DistrictRepository = (*Districts)(nil)
	_ reference.CropRepository     = (*Crops)(nil)
)

type Districts struct {
	GetByDistrictIDFn func(ctx context.Context, districtID string) (*reference.District, error)
	ListFn            func(ctx context.Context) ([]reference.District, error)

	All []reference.District
}

func (m *Districts) GetByDistrictID(ctx context.Context, districtID string) (*reference.District, error) {
	if m.GetByDistrictIDFn != nil {
		return m.GetByDistrictIDFn(ctx, districtID)
	}
	for i := range m.All {
		if m.All[i].DistrictID == districtID {
			d := m.All[i]
			return &d, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *Districts) List(ctx context.Context) ([]reference.District, error) {
	if m.ListFn != nil {
		return m.ListFn(ctx)
	}
	return append([]reference.District(nil), m.All...), nil
}

type Crops struct {
	GetByNameOrCodeFn func(ctx context.Context, ident string) (*reference.CropType, error)
	GetByCropIDFn     func(ctx context.Context, cropID string) (*reference.CropType, error)

	All []reference.CropType
}

func (m *Crops) GetByNameOrCode(ctx context.Context, ident string) (*reference.CropType, error) {
	if m.GetByNameOrCodeFn != nil {
		return m.GetByNameOrCodeFn(ctx, ident)
	}
	for i := range m.All {
		if strings.EqualFold(m.All[i].Name, ident) || m.All[i].Code == ident {
			c := m.All[i]
			return &c, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *Crops) GetByCropID(ctx context.Context, cropID string) (*reference.CropType, error) {
	if m.GetByCropIDFn != nil {
		return m.GetByCropIDFn(ctx, cropID)
	}
	for i := range m.All {
		if m.All[i].CropID == cropID {
			c := m.All[i]
			return &c, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}
