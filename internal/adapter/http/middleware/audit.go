package middleware

import (
	"net/http"

	"vending-kernel/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// AdminAudit logs every successful state-changing request made by an
// administrator, named after the action it performed.
func AdminAudit(log zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if c.Writer.Status() < 200 || c.Writer.Status() >= 300 {
			return
		}
		switch c.Request.Method {
		case http.MethodGet, http.MethodHead, http.MethodOptions:
			return
		}

		action := mapRouteToAction(c.FullPath(), c.Request.Method)
		if action == "" {
			return
		}

		event := log.Info().
			Str("action", action).
			Str("actor_id", ActorID(c)).
			Str("request_id", c.GetString(response.RequestIDKey))
		for _, p := range c.Params {
			event = event.Str(p.Key, p.Value)
		}
		event.Msg("admin action")
	}
}

func mapRouteToAction(route, method string) string {
	switch {
	case route == "/api/v1/admin/payments/:id/approve" && method == http.MethodPost:
		return "payment.approve"
	case route == "/api/v1/admin/payments/:id/reject" && method == http.MethodPost:
		return "payment.reject"
	case route == "/api/v1/payments/decisions" && method == http.MethodPost:
		return "payment.decide_by_token"
	case route == "/api/v1/admin/users/:actor_id/admin" && method == http.MethodPut:
		return "user.set_admin"
	}
	return ""
}
