package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/opsdesk/internal/clock"
	customerdomain "github.com/smallbiznis/opsdesk/internal/customer/domain"
	"github.com/smallbiznis/opsdesk/internal/invoice/domain"
	"github.com/smallbiznis/opsdesk/internal/observability/metrics"
	"github.com/smallbiznis/opsdesk/internal/orgcontext"
	"github.com/smallbiznis/opsdesk/pkg/db"
	"github.com/smallbiznis/opsdesk/pkg/db/pagination"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB      *gorm.DB
	Log     *zap.Logger
	Clock   clock.Clock
	GenID   *snowflake.Node
	Metrics *metrics.Metrics
}

type Service struct {
	db      *gorm.DB
	log     *zap.Logger
	clock   clock.Clock
	genID   *snowflake.Node
	metrics *metrics.Metrics
}

func New(p Params) domain.Service {
	return &Service{
		db:      p.DB,
		log:     p.Log.Named("invoice.service"),
		clock:   p.Clock,
		genID:   p.GenID,
		metrics: p.Metrics,
	}
}

func (s *Service) Create(ctx context.Context, req domain.CreateInvoiceRequest) (domain.Invoice, error) {
	orgID, ok := orgcontext.OrgIDFromContext(ctx)
	if !ok || orgID == 0 {
		return domain.Invoice{}, domain.ErrInvalidOrganization
	}

	customerID, err := snowflake.ParseString(strings.TrimSpace(req.CustomerID))
	if err != nil || customerID == 0 {
		return domain.Invoice{}, domain.ErrInvalidCustomer
	}
	var customer customerdomain.Customer
	err = s.db.WithContext(ctx).
		Where("org_id = ? AND id = ?", orgID, customerID).
		Take(&customer).Error
	if err == gorm.ErrRecordNotFound {
		return domain.Invoice{}, domain.ErrInvalidCustomer
	}
	if err != nil {
		return domain.Invoice{}, err
	}

	currency := strings.ToUpper(strings.TrimSpace(req.Currency))
	if len(currency) != 3 {
		return domain.Invoice{}, domain.ErrInvalidCurrency
	}
	if req.TaxAmount < 0 {
		return domain.Invoice{}, domain.ErrInvalidLineItem
	}

	var workID *snowflake.ID
	if strings.TrimSpace(req.WorkID) != "" {
		id, err := snowflake.ParseString(strings.TrimSpace(req.WorkID))
		if err != nil || id == 0 {
			return domain.Invoice{}, domain.ErrInvalidID
		}
		workID = &id
	}

	items, subtotal, err := s.buildItems(orgID, req.Items)
	if err != nil {
		return domain.Invoice{}, err
	}

	now := s.clock.Now()
	invoice := domain.Invoice{
		ID:         s.genID.Generate(),
		OrgID:      orgID,
		CustomerID: customerID,
		WorkID:     workID,
		Status:     domain.StatusDraft,
		Currency:   currency,
		Subtotal:   subtotal,
		TaxAmount:  req.TaxAmount,
		Total:      subtotal + req.TaxAmount,
		DueAt:      req.DueAt,
		Notes:      strings.TrimSpace(req.Notes),
		Metadata:   datatypes.JSONMap{},
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	// Number assignment races with concurrent creates in the same org;
	// the unique (org, number) index catches the loser, which retries.
	for attempt := 0; attempt < 3; attempt++ {
		number, err := s.nextNumber(ctx, orgID, now.Year())
		if err != nil {
			return domain.Invoice{}, err
		}
		invoice.Number = number

		err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			if err := tx.Create(&invoice).Error; err != nil {
				return err
			}
			for i := range items {
				items[i].InvoiceID = invoice.ID
				items[i].CreatedAt = now
				if err := tx.Create(&items[i]).Error; err != nil {
					return err
				}
			}
			return nil
		})
		if err == nil {
			invoice.Items = items
			return invoice, nil
		}
		if !db.IsDuplicateKeyErr(err) {
			return domain.Invoice{}, err
		}
	}
	return domain.Invoice{}, fmt.Errorf("invoice number assignment exhausted retries")
}

func (s *Service) Update(ctx context.Context, req domain.UpdateInvoiceRequest) (domain.Invoice, error) {
	orgID, ok := orgcontext.OrgIDFromContext(ctx)
	if !ok || orgID == 0 {
		return domain.Invoice{}, domain.ErrInvalidOrganization
	}

	invoice, err := s.findInvoice(ctx, orgID, req.ID)
	if err != nil {
		return domain.Invoice{}, err
	}
	if invoice.Status != domain.StatusDraft {
		return domain.Invoice{}, domain.ErrNotDraft
	}
	if req.TaxAmount < 0 {
		return domain.Invoice{}, domain.ErrInvalidLineItem
	}

	items, subtotal, err := s.buildItems(orgID, req.Items)
	if err != nil {
		return domain.Invoice{}, err
	}

	now := s.clock.Now()
	invoice.Subtotal = subtotal
	invoice.TaxAmount = req.TaxAmount
	invoice.Total = subtotal + req.TaxAmount
	invoice.DueAt = req.DueAt
	invoice.Notes = strings.TrimSpace(req.Notes)
	invoice.UpdatedAt = now

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("org_id = ? AND invoice_id = ?", orgID, invoice.ID).
			Delete(&domain.InvoiceItem{}).Error; err != nil {
			return err
		}
		for i := range items {
			items[i].InvoiceID = invoice.ID
			items[i].CreatedAt = now
			if err := tx.Create(&items[i]).Error; err != nil {
				return err
			}
		}
		return tx.Save(invoice).Error
	})
	if err != nil {
		return domain.Invoice{}, err
	}
	invoice.Items = items
	return *invoice, nil
}

func (s *Service) List(ctx context.Context, req domain.ListInvoiceRequest) (domain.ListInvoiceResponse, error) {
	orgID, ok := orgcontext.OrgIDFromContext(ctx)
	if !ok || orgID == 0 {
		return domain.ListInvoiceResponse{}, domain.ErrInvalidOrganization
	}

	stmt := s.db.WithContext(ctx).
		Model(&domain.Invoice{}).
		Where("invoices.org_id = ?", orgID).
		Preload("Customer").
		Preload("Items")
	if status := strings.TrimSpace(req.Status); status != "" {
		stmt = stmt.Where("invoices.status = ?", strings.ToLower(status))
	}
	if req.CustomerID != "" {
		customerID, err := snowflake.ParseString(req.CustomerID)
		if err != nil {
			return domain.ListInvoiceResponse{}, domain.ErrInvalidCustomer
		}
		stmt = stmt.Where("invoices.customer_id = ?", customerID)
	}

	pageSize := req.PageSize
	if pageSize <= 0 {
		pageSize = 50
	}
	if req.PageToken != "" {
		cursor, err := pagination.DecodeCursor(req.PageToken)
		if err == nil && cursor != nil {
			stmt = stmt.Where("(invoices.created_at, invoices.id) < (?, ?)", cursor.CreatedAt, cursor.ID)
		}
	}

	var items []*domain.Invoice
	err := stmt.Order("invoices.created_at desc, invoices.id desc").
		Limit(int(pageSize) + 1).
		Find(&items).Error
	if err != nil {
		return domain.ListInvoiceResponse{}, err
	}

	pageInfo := pagination.BuildCursorPageInfo(items, pageSize, func(inv *domain.Invoice) string {
		token, err := pagination.EncodeCursor(pagination.Cursor{
			ID:        inv.ID.String(),
			CreatedAt: inv.CreatedAt.Format(time.RFC3339),
		})
		if err != nil {
			return ""
		}
		return token
	})
	if pageInfo != nil && pageInfo.HasMore && len(items) > int(pageSize) {
		items = items[:pageSize]
	}

	invoices := make([]domain.Invoice, 0, len(items))
	for _, item := range items {
		if item == nil {
			continue
		}
		invoices = append(invoices, *item)
	}

	resp := domain.ListInvoiceResponse{Invoices: invoices}
	if pageInfo != nil {
		resp.PageInfo = *pageInfo
	}
	return resp, nil
}

func (s *Service) GetByID(ctx context.Context, rawID string) (domain.Invoice, error) {
	orgID, ok := orgcontext.OrgIDFromContext(ctx)
	if !ok || orgID == 0 {
		return domain.Invoice{}, domain.ErrInvalidOrganization
	}

	id, err := snowflake.ParseString(strings.TrimSpace(rawID))
	if err != nil || id == 0 {
		return domain.Invoice{}, domain.ErrInvalidID
	}

	var invoice domain.Invoice
	err = s.db.WithContext(ctx).
		Where("invoices.org_id = ? AND invoices.id = ?", orgID, id).
		Preload("Customer").
		Preload("Items").
		Take(&invoice).Error
	if err == gorm.ErrRecordNotFound {
		return domain.Invoice{}, domain.ErrNotFound
	}
	if err != nil {
		return domain.Invoice{}, err
	}
	return invoice, nil
}

func (s *Service) MarkSent(ctx context.Context, rawID string) (domain.Invoice, error) {
	return s.transition(ctx, rawID, domain.StatusSent)
}

func (s *Service) MarkPaid(ctx context.Context, rawID string) (domain.Invoice, error) {
	return s.transition(ctx, rawID, domain.StatusPaid)
}

func (s *Service) Cancel(ctx context.Context, rawID string) (domain.Invoice, error) {
	return s.transition(ctx, rawID, domain.StatusCancelled)
}

func (s *Service) transition(ctx context.Context, rawID string, target domain.Status) (domain.Invoice, error) {
	orgID, ok := orgcontext.OrgIDFromContext(ctx)
	if !ok || orgID == 0 {
		return domain.Invoice{}, domain.ErrInvalidOrganization
	}

	invoice, err := s.findInvoice(ctx, orgID, rawID)
	if err != nil {
		return domain.Invoice{}, err
	}
	if !validTransition(invoice.Status, target) {
		return domain.Invoice{}, domain.ErrInvalidTransition
	}

	now := s.clock.Now()
	invoice.Status = target
	invoice.UpdatedAt = now
	switch target {
	case domain.StatusSent:
		invoice.IssuedAt = &now
	case domain.StatusPaid:
		invoice.PaidAt = &now
	}

	if err := s.db.WithContext(ctx).Save(invoice).Error; err != nil {
		return domain.Invoice{}, err
	}
	if target == domain.StatusSent {
		s.metrics.RecordInvoiceIssued(ctx, orgID.String())
	}
	s.log.Info("invoice status changed",
		zap.String("org_id", orgID.String()),
		zap.String("invoice_id", invoice.ID.String()),
		zap.String("status", string(target)),
	)
	return *invoice, nil
}

func (s *Service) Receivables(ctx context.Context) (domain.ReceivablesSummary, error) {
	orgID, ok := orgcontext.OrgIDFromContext(ctx)
	if !ok || orgID == 0 {
		return domain.ReceivablesSummary{}, domain.ErrInvalidOrganization
	}

	var invoices []domain.Invoice
	err := s.db.WithContext(ctx).
		Where("org_id = ? AND status IN ?", orgID, []domain.Status{domain.StatusDraft, domain.StatusSent}).
		Find(&invoices).Error
	if err != nil {
		return domain.ReceivablesSummary{}, err
	}

	now := s.clock.Now()
	summary := domain.ReceivablesSummary{}
	for _, inv := range invoices {
		if summary.Currency == "" {
			summary.Currency = inv.Currency
		}
		switch inv.Status {
		case domain.StatusDraft:
			summary.DraftCount++
		case domain.StatusSent:
			summary.OutstandingCount++
			summary.OutstandingTotal += inv.Total
			if inv.DueAt != nil && inv.DueAt.Before(now) {
				summary.OverdueCount++
				summary.OverdueTotal += inv.Total
			}
		}
	}
	return summary, nil
}

func (s *Service) findInvoice(ctx context.Context, orgID snowflake.ID, rawID string) (*domain.Invoice, error) {
	id, err := snowflake.ParseString(strings.TrimSpace(rawID))
	if err != nil || id == 0 {
		return nil, domain.ErrInvalidID
	}

	var invoice domain.Invoice
	err = s.db.WithContext(ctx).
		Where("org_id = ? AND id = ?", orgID, id).
		Preload("Items").
		Take(&invoice).Error
	if err == gorm.ErrRecordNotFound {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &invoice, nil
}

func (s *Service) buildItems(orgID snowflake.ID, inputs []domain.LineItemInput) ([]domain.InvoiceItem, int64, error) {
	if len(inputs) == 0 {
		return nil, 0, domain.ErrNoLineItems
	}

	items := make([]domain.InvoiceItem, 0, len(inputs))
	var subtotal int64
	for _, input := range inputs {
		description := strings.TrimSpace(input.Description)
		if description == "" || input.Quantity <= 0 || input.UnitAmount < 0 {
			return nil, 0, domain.ErrInvalidLineItem
		}

		var serviceID *snowflake.ID
		if strings.TrimSpace(input.ServiceID) != "" {
			id, err := snowflake.ParseString(strings.TrimSpace(input.ServiceID))
			if err != nil || id == 0 {
				return nil, 0, domain.ErrInvalidLineItem
			}
			serviceID = &id
		}

		amount := input.Quantity * input.UnitAmount
		subtotal += amount
		items = append(items, domain.InvoiceItem{
			ID:          s.genID.Generate(),
			OrgID:       orgID,
			ServiceID:   serviceID,
			Description: description,
			Quantity:    input.Quantity,
			UnitAmount:  input.UnitAmount,
			Amount:      amount,
		})
	}
	return items, subtotal, nil
}

// nextNumber derives the next sequential invoice number for the org and
// year, e.g. INV-2026-0007. Uniqueness is enforced by the database; the
// caller retries on a duplicate.
func (s *Service) nextNumber(ctx context.Context, orgID snowflake.ID, year int) (string, error) {
	prefix := fmt.Sprintf("INV-%d-", year)
	var count int64
	err := s.db.WithContext(ctx).
		Model(&domain.Invoice{}).
		Where("org_id = ? AND number LIKE ?", orgID, prefix+"%").
		Count(&count).Error
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s%04d", prefix, count+1), nil
}

func validTransition(from, to domain.Status) bool {
	switch from {
	case domain.StatusDraft:
		return to == domain.StatusSent || to == domain.StatusCancelled
	case domain.StatusSent:
		return to == domain.StatusPaid || to == domain.StatusCancelled
	default:
		return false
	}
}
