package domain

import (
	"context"
	"errors"
)

type CreateGroupRequest struct {
	Name string `json:"name"`
	Kind string `json:"kind"`
}

type UpdateGroupRequest struct {
	ID   string `json:"-"`
	Name string `json:"name"`
	Kind string `json:"kind"`
}

type CreateAccountRequest struct {
	GroupID     string `json:"group_id"`
	Code        string `json:"code"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}

type UpdateAccountRequest struct {
	ID          string `json:"-"`
	GroupID     string `json:"group_id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Active      *bool  `json:"active,omitempty"`
}

type ListAccountFilter struct {
	GroupID string `form:"group_id"`
	Active  *bool  `form:"active"`
}

type Service interface {
	CreateGroup(ctx context.Context, req CreateGroupRequest) (AccountGroup, error)
	UpdateGroup(ctx context.Context, req UpdateGroupRequest) (AccountGroup, error)
	ListGroups(ctx context.Context) ([]AccountGroup, error)

	// DeleteGroup removes an empty group. Groups still holding accounts
	// cannot be deleted.
	DeleteGroup(ctx context.Context, id string) error

	CreateAccount(ctx context.Context, req CreateAccountRequest) (LedgerAccount, error)
	UpdateAccount(ctx context.Context, req UpdateAccountRequest) (LedgerAccount, error)
	ListAccounts(ctx context.Context, filter ListAccountFilter) ([]LedgerAccount, error)
	GetAccount(ctx context.Context, id string) (LedgerAccount, error)
	DeleteAccount(ctx context.Context, id string) error
}

var (
	ErrInvalidOrganization = errors.New("invalid_organization")
	ErrInvalidID           = errors.New("invalid_id")
	ErrInvalidName         = errors.New("invalid_name")
	ErrInvalidKind         = errors.New("invalid_kind")
	ErrInvalidCode         = errors.New("invalid_code")
	ErrInvalidGroup        = errors.New("invalid_group")
	ErrDuplicateName       = errors.New("duplicate_name")
	ErrDuplicateCode       = errors.New("duplicate_code")
	ErrGroupNotEmpty       = errors.New("group_not_empty")
	ErrNotFound            = errors.New("not_found")
)
