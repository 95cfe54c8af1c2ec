package scope

import (
	"context"
	"sort"

	"agriloan/internal/domain/actor"
	"agriloan/internal/domain/reference"

	"github.com/pkg/errors"
)

// DistrictSet is the set of district ids an actor may operate on.
// An empty set means no access.
type DistrictSet map[string]struct{}

func NewDistrictSet(ids ...string) DistrictSet {
	s := make(DistrictSet, len(ids))
	for _, id := range ids {
		s.Add(id)
	}
	return s
}

func (s DistrictSet) Add(id string) {
	if id != "" {
		s[id] = struct{}{}
	}
}

func (s DistrictSet) Contains(id string) bool {
	_, ok := s[id]
	return ok
}

func (s DistrictSet) Empty() bool { return len(s) == 0 }

// Slice returns the ids sorted, so queries built from it are stable.
func (s DistrictSet) Slice() []string {
	out := make([]string, 0, len(s))
	for id := range s {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

type Resolver struct {
	districts   reference.DistrictRepository
	users       actor.UserRepository
	assignments actor.AssignmentRepository
}

func NewResolver(d reference.DistrictRepository, u actor.UserRepository, a actor.AssignmentRepository) *Resolver {
	return &Resolver{districts: d, users: u, assignments: a}
}

// AccessibleDistricts resolves the district scope of a.
//
// Admins see every district. Supervisors see their home district plus the home
// district of every actively assigned loan officer; officers co-located in the
// supervisor's home district add nothing beyond it. Loan officers see only
// their home district. Farmers are scoped by ownership, never by district, so
// they resolve to the empty set.
func (r *Resolver) AccessibleDistricts(ctx context.Context, a actor.Actor) (DistrictSet, error) {
	switch a.Role {
	case actor.RoleAdmin:
		all, err := r.districts.List(ctx)
		if err != nil {
			return nil, errors.Wrap(err, "list districts")
		}
		set := make(DistrictSet, len(all))
		for _, d := range all {
			set.Add(d.DistrictID)
		}
		return set, nil

	case actor.RoleSupervisor:
		set := NewDistrictSet(a.DistrictID)
		officers, err := r.assignments.ListActiveOfficers(ctx, a.ID)
		if err != nil {
			return nil, errors.Wrap(err, "list assigned officers")
		}
		for _, o := range officers {
			set.Add(o.HomeDistrict())
		}
		return set, nil

	case actor.RoleLoanOfficer:
		return NewDistrictSet(a.DistrictID), nil
	}
	return DistrictSet{}, nil
}

// ManagedOfficers lists the loan officers a may assign work to.
//
// The assignment table is authoritative; officers sharing the supervisor's home
// district are appended after it, skipping anyone already listed.
func (r *Resolver) ManagedOfficers(ctx context.Context, a actor.Actor) ([]actor.User, error) {
	switch a.Role {
	case actor.RoleAdmin:
		officers, err := r.users.ListByRole(ctx, actor.RoleLoanOfficer)
		return officers, errors.Wrap(err, "list loan officers")

	case actor.RoleSupervisor:
		managed, err := r.assignments.ListActiveOfficers(ctx, a.ID)
		if err != nil {
			return nil, errors.Wrap(err, "list assigned officers")
		}
		if !a.HasDistrict() {
			return managed, nil
		}
		local, err := r.users.ListOfficersInDistrict(ctx, a.DistrictID)
		if err != nil {
			return nil, errors.Wrap(err, "list district officers")
		}
		seen := make(map[string]struct{}, len(managed)+len(local))
		for _, o := range managed {
			seen[o.UserID] = struct{}{}
		}
		for _, o := range local {
			if _, dup := seen[o.UserID]; dup {
				continue
			}
			seen[o.UserID] = struct{}{}
			managed = append(managed, o)
		}
		return managed, nil
	}
	return nil, nil
}

// ManagedOfficer returns the officer when a manages them, nil otherwise.
func (r *Resolver) ManagedOfficer(ctx context.Context, a actor.Actor, officerID string) (*actor.User, error) {
	officers, err := r.ManagedOfficers(ctx, a)
	if err != nil {
		return nil, err
	}
	for i := range officers {
		if officers[i].UserID == officerID {
			return &officers[i], nil
		}
	}
	return nil, nil
}
