package reference

import "time"

// Table: districts
type District struct {
	ID         uint64    `gorm:"primaryKey;column:id" json:"-"`
	DistrictID string    `gorm:"column:district_id;size:32;uniqueIndex" json:"district_id"`
	Name       string    `gorm:"column:name;size:100;uniqueIndex;not null" json:"name"`
	Code       string    `gorm:"column:code;size:10;uniqueIndex;not null" json:"code"`
	Region     string    `gorm:"column:region;size:100" json:"region"`
	CreatedAt  time.Time `gorm:"column:created_at;autoCreateTime" json:"-"`
}

func (District) TableName() string { return "districts" }

// Table: crop_types
type CropType struct {
	ID          uint64    `gorm:"primaryKey;column:id" json:"-"`
	CropID      string    `gorm:"column:crop_id;size:32;uniqueIndex" json:"crop_id"`
	Name        string    `gorm:"column:name;size:50;uniqueIndex;not null" json:"name"`
	Code        string    `gorm:"column:code;size:10;uniqueIndex;not null" json:"code"`
	Description string    `gorm:"column:description;type:text" json:"description,omitempty"`
	CreatedAt   time.Time `gorm:"column:created_at;autoCreateTime" json:"-"`
}

func (CropType) TableName() string { return "crop_types" }
