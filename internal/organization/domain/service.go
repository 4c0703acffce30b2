package domain

import (
	"context"
	"errors"
)

type CreateOrganizationRequest struct {
	Name         string `json:"name"`
	SupportEmail string `json:"support_email,omitempty"`
	CountryCode  string `json:"country_code,omitempty"`
	TimezoneName string `json:"timezone_name,omitempty"`
}

type Service interface {
	Create(ctx context.Context, req CreateOrganizationRequest) (Organization, error)
	GetByID(ctx context.Context, id string) (Organization, error)
	GetBySlug(ctx context.Context, slug string) (Organization, error)
	List(ctx context.Context) ([]Organization, error)
}

var (
	ErrInvalidID     = errors.New("invalid_id")
	ErrInvalidName   = errors.New("invalid_name")
	ErrDuplicateSlug = errors.New("duplicate_slug")
	ErrNotFound      = errors.New("not_found")
)
