package actor

import (
	"time"

	"gorm.io/gorm"
)

type Role string

const (
	RoleFarmer      Role = "farmer"
	RoleLoanOfficer Role = "loan_officer"
	RoleSupervisor  Role = "supervisor"
	RoleAdmin       Role = "admin"
)

func (r Role) Valid() bool {
	switch r {
	case RoleFarmer, RoleLoanOfficer, RoleSupervisor, RoleAdmin:
		return true
	}
	return false
}

// Actor is the authenticated caller of an operation. It never changes mid-request.
type Actor struct {
	ID         string
	Role       Role
	DistrictID string // empty when no home district is assigned
}

func (a Actor) HasDistrict() bool { return a.DistrictID != "" }

// Table: users
type User struct {
	ID         uint64         `gorm:"primaryKey;column:id" json:"-"`
	UserID     string         `gorm:"column:user_id;size:32;uniqueIndex" json:"user_id"`
	FirstName  string         `gorm:"column:first_name;size:100;not null" json:"first_name"`
	LastName   string         `gorm:"column:last_name;size:100;not null" json:"last_name"`
	Email      *string        `gorm:"column:email;size:255;uniqueIndex" json:"email,omitempty"`
	Role       Role           `gorm:"column:role;type:enum('farmer','loan_officer','supervisor','admin');not null" json:"role"`
	DistrictID *string        `gorm:"column:district_id;size:32;index" json:"district_id,omitempty"`
	IsActive   bool           `gorm:"column:is_active;default:true" json:"is_active"`
	CreatedAt  time.Time      `gorm:"column:created_at;autoCreateTime" json:"created_at"`
	UpdatedAt  time.Time      `gorm:"column:updated_at;autoUpdateTime" json:"-"`
	DeletedAt  gorm.DeletedAt `gorm:"column:deleted_at;index" json:"-"`
}

func (User) TableName() string { return "users" }

func (u *User) FullName() string { return u.FirstName + " " + u.LastName }

func (u *User) HomeDistrict() string {
	if u.DistrictID == nil {
		return ""
	}
	return *u.DistrictID
}

func (u *User) Actor() Actor {
	return Actor{ID: u.UserID, Role: u.Role, DistrictID: u.HomeDistrict()}
}

// Table: supervisor_loan_officer
type SupervisorAssignment struct {
	SupervisorID  string    `gorm:"column:supervisor_id;size:32;primaryKey"`
	LoanOfficerID string    `gorm:"column:loan_officer_id;size:32;primaryKey"`
	AssignedDate  time.Time `gorm:"column:assigned_date;autoCreateTime"`
	IsActive      bool      `gorm:"column:is_active;default:true"`
}

func (SupervisorAssignment) TableName() string { return "supervisor_loan_officer" }
