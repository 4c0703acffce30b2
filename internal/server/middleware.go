package server

import (
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	obscontext "github.com/smallbiznis/opsdesk/internal/observability/context"
	"github.com/smallbiznis/opsdesk/internal/orgcontext"
)

const HeaderOrg = "X-Org-ID"

// OrgContext resolves the tenant for the request from the X-Org-ID
// header, falling back to the configured default org for single-tenant
// installs. Requests without a resolvable org are rejected.
func (s *Server) OrgContext() gin.HandlerFunc {
	return func(c *gin.Context) {
		raw := strings.TrimSpace(c.GetHeader(HeaderOrg))

		var orgID snowflake.ID
		if raw != "" {
			parsed, err := snowflake.ParseString(raw)
			if err != nil || parsed == 0 {
				AbortWithError(c, newValidationError("org_id", "invalid_org_id", "invalid org id"))
				return
			}
			orgID = parsed
		} else if s.cfg.DefaultOrgID != 0 {
			orgID = snowflake.ID(s.cfg.DefaultOrgID)
		} else {
			AbortWithError(c, ErrUnauthorized)
			return
		}

		ctx := orgcontext.WithOrgID(c.Request.Context(), int64(orgID))
		ctx = obscontext.WithOrgID(ctx, orgID.String())
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}
