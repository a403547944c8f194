package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/medtransit/nemt-scheduler/pkg/logger"
)

const (
	// CorrelationIDHeader carries the request ID between the booking portal,
	// this scheduler, and whatever it calls next.
	CorrelationIDHeader = "X-Request-ID"
	// CorrelationIDKey is the gin context key.
	CorrelationIDKey = "correlation_id"
)

// CorrelationID accepts a caller-supplied request ID when it is a valid
// UUID, otherwise mints one, and threads it into the request context so
// every log line for this request carries it.
func CorrelationID() gin.HandlerFunc {
	return func(c *gin.Context) {
		correlationID := strings.TrimSpace(c.GetHeader(CorrelationIDHeader))
		if correlationID != "" {
			if _, err := uuid.Parse(correlationID); err != nil {
				correlationID = ""
			}
		}
		if correlationID == "" {
			correlationID = uuid.New().String()
		}

		c.Set(CorrelationIDKey, correlationID)

		ctx := logger.ContextWithCorrelationID(c.Request.Context(), correlationID)
		c.Request = c.Request.WithContext(ctx)

		c.Writer.Header().Set(CorrelationIDHeader, correlationID)

		c.Next()
	}
}
