package middleware

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/nulzo/chat-relay/pkg/api"
	"go.uber.org/zap"
)

// ErrorHandler renders the last error a handler attached with c.Error.
func ErrorHandler(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) == 0 || c.Writer.Written() {
			return
		}

		err := c.Errors.Last().Err

		var problem *api.Problem
		if errors.As(err, &problem) {
			if problem.Log != nil {
				fields := []zap.Field{
					zap.Int("status", problem.Status),
					zap.String("request_id", c.GetString(RequestIDKey)),
					zap.Error(problem.Log),
				}
				if problem.Status >= http.StatusInternalServerError {
					logger.Error(problem.Title, fields...)
				} else {
					logger.Warn(problem.Title, fields...)
				}
			}

			// RFC 9457 puts the members at the root
			c.AbortWithStatusJSON(problem.Status, problem)
			return
		}

		logger.Error("Unhandled error",
			zap.String("request_id", c.GetString(RequestIDKey)),
			zap.Error(err))

		c.AbortWithStatusJSON(http.StatusInternalServerError, api.NewError(
			http.StatusInternalServerError,
			"Internal Server Error",
			"An unexpected error occurred.",
		))
	}
}
