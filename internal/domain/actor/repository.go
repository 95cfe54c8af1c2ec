package actor

import "context"

type UserRepository interface {
	GetByUserID(ctx context.Context, userID string) (*User, error)

	// Active users with the given role, any district.
	ListByRole(ctx context.Context, role Role) ([]User, error)

	// Active loan officers whose home district is districtID.
	ListOfficersInDistrict(ctx context.Context, districtID string) ([]User, error)
}

type AssignmentRepository interface {
	// Loan officers linked to the supervisor through an active assignment row.
	ListActiveOfficers(ctx context.Context, supervisorID string) ([]User, error)
}
