package domain

import (
	"context"
	"errors"

	workdomain "github.com/smallbiznis/opsdesk/internal/work/domain"
)

// ReportFilter narrows the assembled report. Filters apply after the
// full report is built, never at query time, so the summary always
// reflects the filtered view the caller receives.
type ReportFilter struct {
	Kind         Kind
	Priority     workdomain.Priority
	CustomerName string
}

type SetReasonRequest struct {
	WorkID string
	Reason string
}

type Service interface {
	// Report assembles the overdue report for the organization in ctx.
	// It fails closed: if any source cannot be read, no partial report
	// is returned.
	Report(ctx context.Context, filter ReportFilter) (Report, error)

	// SetReason records why a work is overdue. An empty reason clears
	// both the reason and its timestamp. Reasons exist on works only;
	// overdue tasks are explained through their parent work.
	SetReason(ctx context.Context, req SetReasonRequest) (workdomain.Work, error)
}

var (
	ErrInvalidOrganization = errors.New("invalid_organization")
	ErrInvalidID           = errors.New("invalid_id")
	ErrNotFound            = errors.New("not_found")
	ErrNotOverdue          = errors.New("work_not_overdue")
)
