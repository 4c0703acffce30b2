package domain

import (
	"context"
	"errors"
)

type CreateStaffRequest struct {
	Email       string
	DisplayName string
	Role        string
}

type UpdateStaffRequest struct {
	ID          string
	DisplayName string
	Role        string
	Active      *bool
}

// ResolveRequest identifies a session principal to link to a staff row.
type ResolveRequest struct {
	AuthUserID string
	Email      string
}

type Service interface {
	Create(context.Context, CreateStaffRequest) (StaffMember, error)
	Update(context.Context, UpdateStaffRequest) (StaffMember, error)
	List(ctx context.Context) ([]StaffMember, error)
	GetByID(ctx context.Context, id string) (StaffMember, error)

	// ResolveOrLink returns the staff member for an authenticated principal.
	// Lookup is by auth user id first, then by email; an email match
	// backfills the auth user id. Idempotent: repeated calls with the same
	// principal return the same row. Called once at session start.
	ResolveOrLink(context.Context, ResolveRequest) (StaffMember, error)
}

var (
	ErrInvalidOrganization = errors.New("invalid_organization")
	ErrInvalidEmail        = errors.New("invalid_email")
	ErrInvalidDisplayName  = errors.New("invalid_display_name")
	ErrInvalidRole         = errors.New("invalid_role")
	ErrInvalidID           = errors.New("invalid_id")
	ErrNotFound            = errors.New("not_found")
)
