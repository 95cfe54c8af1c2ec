package reference

import "context"

type DistrictRepository interface {
	GetByDistrictID(ctx context.Context, districtID string) (*District, error)
	List(ctx context.Context) ([]District, error)
}

type CropRepository interface {
	// Name match is case-insensitive, code match is exact.
	GetByNameOrCode(ctx context.Context, ident string) (*CropType, error)
	GetByCropID(ctx context.Context, cropID string) (*CropType, error)
}
