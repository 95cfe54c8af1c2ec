package cache

import (
	"context"
	"time"

	"agriloan/internal/domain/reference"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

// Reference data changes only through seeding, so a short TTL is enough to
// keep lookups off the database on the submission path.

type CachedDistricts struct {
	next reference.DistrictRepository
	byID *expirable.LRU[string, reference.District]
	all  *expirable.LRU[string, []reference.District]
}

func NewCachedDistricts(next reference.DistrictRepository, size int, ttl time.Duration) *CachedDistricts {
	return &CachedDistricts{
		next: next,
		byID: expirable.NewLRU[string, reference.District](size, nil, ttl),
		all:  expirable.NewLRU[string, []reference.District](1, nil, ttl),
	}
}

func (c *CachedDistricts) GetByDistrictID(ctx context.Context, districtID string) (*reference.District, error) {
	if d, ok := c.byID.Get(districtID); ok {
		return &d, nil
	}
	d, err := c.next.GetByDistrictID(ctx, districtID)
	if err != nil {
		return nil, err
	}
	c.byID.Add(districtID, *d)
	return d, nil
}

func (c *CachedDistricts) List(ctx context.Context) ([]reference.District, error) {
	if ds, ok := c.all.Get("all"); ok {
		return append([]reference.District(nil), ds...), nil
	}
	ds, err := c.next.List(ctx)
	if err != nil {
		return nil, err
	}
	c.all.Add("all", append([]reference.District(nil), ds...))
	return ds, nil
}

type CachedCrops struct {
	next    reference.CropRepository
	byIdent *expirable.LRU[string, reference.CropType]
	byID    *expirable.LRU[string, reference.CropType]
}

func NewCachedCrops(next reference.CropRepository, size int, ttl time.Duration) *CachedCrops {
	return &CachedCrops{
		next:    next,
		byIdent: expirable.NewLRU[string, reference.CropType](size, nil, ttl),
		byID:    expirable.NewLRU[string, reference.CropType](size, nil, ttl),
	}
}

// GetByNameOrCode caches by the exact identifier; codes are case-sensitive so
// the key is not folded.
func (c *CachedCrops) GetByNameOrCode(ctx context.Context, ident string) (*reference.CropType, error) {
	if ct, ok := c.byIdent.Get(ident); ok {
		return &ct, nil
	}
	ct, err := c.next.GetByNameOrCode(ctx, ident)
	if err != nil {
		return nil, err
	}
	c.byIdent.Add(ident, *ct)
	c.byID.Add(ct.CropID, *ct)
	return ct, nil
}

func (c *CachedCrops) GetByCropID(ctx context.Context, cropID string) (*reference.CropType, error) {
	if ct, ok := c.byID.Get(cropID); ok {
		return &ct, nil
	}
	ct, err := c.next.GetByCropID(ctx, cropID)
	if err != nil {
		return nil, err
	}
	c.byID.Add(cropID, *ct)
	return ct, nil
}
