package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	invoicedomain "github.com/smallbiznis/opsdesk/internal/invoice/domain"
)

type lineItemInput struct {
	ServiceID   string `json:"service_id"`
	Description string `json:"description"`
	Quantity    int64  `json:"quantity"`
	UnitAmount  int64  `json:"unit_amount"`
}

type createInvoiceRequest struct {
	CustomerID string          `json:"customer_id"`
	WorkID     string          `json:"work_id"`
	Currency   string          `json:"currency"`
	TaxAmount  int64           `json:"tax_amount"`
	DueAt      string          `json:"due_at"`
	Notes      string          `json:"notes"`
	Items      []lineItemInput `json:"items"`
}

type updateInvoiceRequest struct {
	TaxAmount int64           `json:"tax_amount"`
	DueAt     string          `json:"due_at"`
	Notes     string          `json:"notes"`
	Items     []lineItemInput `json:"items"`
}

func (s *Server) CreateInvoice(c *gin.Context) {
	var req createInvoiceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	dueAt, err := parseOptionalTime(req.DueAt, true)
	if err != nil {
		AbortWithError(c, newValidationError("due_at", "invalid_due_at", "invalid due_at"))
		return
	}

	resp, err := s.invoiceSvc.Create(c.Request.Context(), invoicedomain.CreateInvoiceRequest{
		CustomerID: strings.TrimSpace(req.CustomerID),
		WorkID:     strings.TrimSpace(req.WorkID),
		Currency:   strings.TrimSpace(req.Currency),
		TaxAmount:  req.TaxAmount,
		DueAt:      dueAt,
		Notes:      strings.TrimSpace(req.Notes),
		Items:      toLineItems(req.Items),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) ListInvoices(c *gin.Context) {
	var query invoicedomain.ListInvoiceRequest
	if err := c.ShouldBindQuery(&query); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.invoiceSvc.List(c.Request.Context(), query)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) GetInvoiceByID(c *gin.Context) {
	resp, err := s.invoiceSvc.GetByID(c.Request.Context(), strings.TrimSpace(c.Param("id")))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) UpdateInvoice(c *gin.Context) {
	var req updateInvoiceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	dueAt, err := parseOptionalTime(req.DueAt, true)
	if err != nil {
		AbortWithError(c, newValidationError("due_at", "invalid_due_at", "invalid due_at"))
		return
	}

	resp, err := s.invoiceSvc.Update(c.Request.Context(), invoicedomain.UpdateInvoiceRequest{
		ID:        strings.TrimSpace(c.Param("id")),
		TaxAmount: req.TaxAmount,
		DueAt:     dueAt,
		Notes:     strings.TrimSpace(req.Notes),
		Items:     toLineItems(req.Items),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) MarkInvoiceSent(c *gin.Context) {
	resp, err := s.invoiceSvc.MarkSent(c.Request.Context(), strings.TrimSpace(c.Param("id")))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) MarkInvoicePaid(c *gin.Context) {
	resp, err := s.invoiceSvc.MarkPaid(c.Request.Context(), strings.TrimSpace(c.Param("id")))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) CancelInvoice(c *gin.Context) {
	resp, err := s.invoiceSvc.Cancel(c.Request.Context(), strings.TrimSpace(c.Param("id")))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) GetReceivables(c *gin.Context) {
	resp, err := s.invoiceSvc.Receivables(c.Request.Context())
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func toLineItems(items []lineItemInput) []invoicedomain.LineItemInput {
	out := make([]invoicedomain.LineItemInput, 0, len(items))
	for _, item := range items {
		out = append(out, invoicedomain.LineItemInput{
			ServiceID:   strings.TrimSpace(item.ServiceID),
			Description: strings.TrimSpace(item.Description),
			Quantity:    item.Quantity,
			UnitAmount:  item.UnitAmount,
		})
	}
	return out
}

func isInvoiceValidationError(err error) bool {
	switch err {
	case invoicedomain.ErrInvalidOrganization,
		invoicedomain.ErrInvalidID,
		invoicedomain.ErrInvalidCustomer,
		invoicedomain.ErrInvalidCurrency,
		invoicedomain.ErrInvalidLineItem,
		invoicedomain.ErrNoLineItems:
		return true
	default:
		return false
	}
}
