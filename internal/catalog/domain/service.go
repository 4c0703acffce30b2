package domain

import (
	"context"
	"errors"
)

type CreateServiceRequest struct {
	Name        string
	Code        string
	Description string
	DefaultRate int64
}

type UpdateServiceRequest struct {
	ID          string
	Name        string
	Description string
	DefaultRate int64
	Active      *bool
}

type ListServiceRequest struct {
	ActiveOnly bool
}

type Service interface {
	Create(context.Context, CreateServiceRequest) (ServiceOffering, error)
	Update(context.Context, UpdateServiceRequest) (ServiceOffering, error)
	List(context.Context, ListServiceRequest) ([]ServiceOffering, error)
	GetByID(ctx context.Context, id string) (ServiceOffering, error)
	Delete(ctx context.Context, id string) error
}

var (
	ErrInvalidOrganization = errors.New("invalid_organization")
	ErrInvalidName         = errors.New("invalid_name")
	ErrInvalidRate         = errors.New("invalid_rate")
	ErrInvalidID           = errors.New("invalid_id")
	ErrDuplicateCode       = errors.New("duplicate_code")
	ErrNotFound            = errors.New("not_found")
)
