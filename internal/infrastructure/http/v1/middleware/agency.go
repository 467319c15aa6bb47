package middleware

import (
	"github.com/gin-gonic/gin"

	"lpgstock/internal/core/apperror"
	appctx "lpgstock/internal/core/context"
	"lpgstock/internal/core/id"
)

// Headers set by the upstream gateway after authentication.
const (
	HeaderAgencyID = "X-Agency-ID"
	HeaderUserID   = "X-User-ID"
	HeaderUserRole = "X-User-Role"
)

// CallerContext resolves the agency and user of the request from gateway
// headers and adds them to the request context for the domain layer.
// Requests without both headers are rejected.
func CallerContext() gin.HandlerFunc {
	return func(c *gin.Context) {
		agencyID, err := id.Parse(c.GetHeader(HeaderAgencyID))
		if err != nil || id.IsNil(agencyID) {
			RenderError(c, apperror.NewUnauthorized("missing or invalid "+HeaderAgencyID+" header"))
			return
		}
		userID, err := id.Parse(c.GetHeader(HeaderUserID))
		if err != nil || id.IsNil(userID) {
			RenderError(c, apperror.NewUnauthorized("missing or invalid "+HeaderUserID+" header"))
			return
		}

		ctx := appctx.WithUser(c.Request.Context(), &appctx.UserContext{
			UserID:   userID,
			AgencyID: agencyID,
			Role:     c.GetHeader(HeaderUserRole),
		})
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}
