package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	accountingdomain "github.com/smallbiznis/opsdesk/internal/accounting/domain"
)

type accountGroupRequest struct {
	Name string `json:"name"`
	Kind string `json:"kind"`
}

type createLedgerAccountRequest struct {
	GroupID     string `json:"group_id"`
	Code        string `json:"code"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

type updateLedgerAccountRequest struct {
	GroupID     string `json:"group_id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Active      *bool  `json:"active"`
}

func (s *Server) CreateAccountGroup(c *gin.Context) {
	var req accountGroupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.accountingSvc.CreateGroup(c.Request.Context(), accountingdomain.CreateGroupRequest{
		Name: strings.TrimSpace(req.Name),
		Kind: strings.TrimSpace(req.Kind),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) ListAccountGroups(c *gin.Context) {
	resp, err := s.accountingSvc.ListGroups(c.Request.Context())
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) UpdateAccountGroup(c *gin.Context) {
	var req accountGroupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.accountingSvc.UpdateGroup(c.Request.Context(), accountingdomain.UpdateGroupRequest{
		ID:   strings.TrimSpace(c.Param("id")),
		Name: strings.TrimSpace(req.Name),
		Kind: strings.TrimSpace(req.Kind),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) DeleteAccountGroup(c *gin.Context) {
	if err := s.accountingSvc.DeleteGroup(c.Request.Context(), strings.TrimSpace(c.Param("id"))); err != nil {
		AbortWithError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

func (s *Server) CreateLedgerAccount(c *gin.Context) {
	var req createLedgerAccountRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.accountingSvc.CreateAccount(c.Request.Context(), accountingdomain.CreateAccountRequest{
		GroupID:     strings.TrimSpace(req.GroupID),
		Code:        strings.TrimSpace(req.Code),
		Name:        strings.TrimSpace(req.Name),
		Description: strings.TrimSpace(req.Description),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) ListLedgerAccounts(c *gin.Context) {
	active, err := parseOptionalBool(c.Query("active"))
	if err != nil {
		AbortWithError(c, newValidationError("active", "invalid_active", "invalid active"))
		return
	}

	resp, err := s.accountingSvc.ListAccounts(c.Request.Context(), accountingdomain.ListAccountFilter{
		GroupID: strings.TrimSpace(c.Query("group_id")),
		Active:  active,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) GetLedgerAccountByID(c *gin.Context) {
	resp, err := s.accountingSvc.GetAccount(c.Request.Context(), strings.TrimSpace(c.Param("id")))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) UpdateLedgerAccount(c *gin.Context) {
	var req updateLedgerAccountRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.accountingSvc.UpdateAccount(c.Request.Context(), accountingdomain.UpdateAccountRequest{
		ID:          strings.TrimSpace(c.Param("id")),
		GroupID:     strings.TrimSpace(req.GroupID),
		Name:        strings.TrimSpace(req.Name),
		Description: strings.TrimSpace(req.Description),
		Active:      req.Active,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) DeleteLedgerAccount(c *gin.Context) {
	if err := s.accountingSvc.DeleteAccount(c.Request.Context(), strings.TrimSpace(c.Param("id"))); err != nil {
		AbortWithError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

func isAccountingValidationError(err error) bool {
	switch err {
	case accountingdomain.ErrInvalidOrganization,
		accountingdomain.ErrInvalidID,
		accountingdomain.ErrInvalidName,
		accountingdomain.ErrInvalidKind,
		accountingdomain.ErrInvalidCode,
		accountingdomain.ErrInvalidGroup:
		return true
	default:
		return false
	}
}
