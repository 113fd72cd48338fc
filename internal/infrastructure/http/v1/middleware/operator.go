package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"

	appctx "fireblue/internal/core/context"
)

// HeaderOperator names the person operating the client. Optional.
const HeaderOperator = "X-Operator"

const maxOperatorLen = 120

// Operator copies the X-Operator header into the request context, where the
// audit log and movement registration read it through appctx.GetOperatorName.
func Operator() gin.HandlerFunc {
	return func(c *gin.Context) {
		name := strings.TrimSpace(c.GetHeader(HeaderOperator))
		if len(name) > maxOperatorLen {
			name = name[:maxOperatorLen]
		}
		if name != "" {
			ctx := appctx.WithOperator(c.Request.Context(), &appctx.Operator{Name: name})
			c.Request = c.Request.WithContext(ctx)
			c.Set("operator", name)
		}
		c.Next()
	}
}
