package middleware

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// HeaderCorrelationID is the header carried end to end: request, response,
// stored event envelope and bus message.
const HeaderCorrelationID = "X-Correlation-Id"

// CorrelationID accepts an inbound correlation id or generates one, echoes
// it on the response and exposes it to handlers via the Gin context.
func CorrelationID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(HeaderCorrelationID)
		if id == "" {
			id = uuid.NewString()
		}
		c.Header(HeaderCorrelationID, id)
		c.Set("correlation_id", id)
		c.Next()
	}
}
