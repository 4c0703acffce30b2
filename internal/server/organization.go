package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	organizationdomain "github.com/smallbiznis/opsdesk/internal/organization/domain"
)

type createOrganizationRequest struct {
	Name         string `json:"name"`
	SupportEmail string `json:"support_email"`
	CountryCode  string `json:"country_code"`
	TimezoneName string `json:"timezone_name"`
}

func (s *Server) CreateOrganization(c *gin.Context) {
	var req createOrganizationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.organizationSvc.Create(c.Request.Context(), organizationdomain.CreateOrganizationRequest{
		Name:         strings.TrimSpace(req.Name),
		SupportEmail: strings.TrimSpace(req.SupportEmail),
		CountryCode:  strings.TrimSpace(req.CountryCode),
		TimezoneName: strings.TrimSpace(req.TimezoneName),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) ListOrganizations(c *gin.Context) {
	resp, err := s.organizationSvc.List(c.Request.Context())
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) GetOrganizationByID(c *gin.Context) {
	id := strings.TrimSpace(c.Param("id"))
	resp, err := s.organizationSvc.GetByID(c.Request.Context(), id)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func isOrganizationValidationError(err error) bool {
	switch err {
	case organizationdomain.ErrInvalidID,
		organizationdomain.ErrInvalidName:
		return true
	default:
		return false
	}
}
