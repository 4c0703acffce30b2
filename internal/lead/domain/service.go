package domain

import (
	"context"
	"errors"
)

type CreateLeadRequest struct {
	Name           string
	Email          string
	Phone          string
	Source         string
	EstimatedValue int64
	Notes          string
}

type UpdateLeadRequest struct {
	ID             string
	Name           string
	Email          string
	Phone          string
	Source         string
	Status         string
	EstimatedValue int64
	Notes          string
}

type ListLeadRequest struct {
	Status string
	Source string
}

// PipelineCounts summarizes leads by pipeline stage.
type PipelineCounts struct {
	New       int64 `json:"new"`
	Contacted int64 `json:"contacted"`
	Qualified int64 `json:"qualified"`
	Converted int64 `json:"converted"`
	Lost      int64 `json:"lost"`
}

type Service interface {
	Create(context.Context, CreateLeadRequest) (Lead, error)
	Update(context.Context, UpdateLeadRequest) (Lead, error)
	List(context.Context, ListLeadRequest) ([]Lead, error)
	GetByID(ctx context.Context, id string) (Lead, error)
	Delete(ctx context.Context, id string) error

	// ConvertToCustomer marks the lead converted and creates a customer from
	// its contact details. Converting an already converted lead returns the
	// existing customer id without creating another row.
	ConvertToCustomer(ctx context.Context, id string) (Lead, error)

	Pipeline(ctx context.Context) (PipelineCounts, error)
}

var (
	ErrInvalidOrganization = errors.New("invalid_organization")
	ErrInvalidName         = errors.New("invalid_name")
	ErrInvalidStatus       = errors.New("invalid_status")
	ErrInvalidID           = errors.New("invalid_id")
	ErrNotFound            = errors.New("not_found")
	ErrLeadLost            = errors.New("lead_lost")
)
