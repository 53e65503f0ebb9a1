package middleware

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/nulzo/misan-console/internal/store"
	"github.com/nulzo/misan-console/internal/validation"
	"github.com/nulzo/misan-console/pkg/api"
)

// ErrorHandler renders the last error pushed with c.Error as an RFC 9457
// problem document. Anything that is not a Problem, a field validation error
// or a not-found error becomes a generic 500; details go to the log only.
func ErrorHandler(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) == 0 {
			return
		}
		err := c.Errors.Last().Err
		problem := toProblem(err)

		if problem.Status >= http.StatusInternalServerError {
			cause := problem.Log
			if cause == nil {
				cause = err
			}
			logger.Error("request failed",
				zap.String("method", c.Request.Method),
				zap.String("path", c.FullPath()),
				zap.Error(cause),
			)
		}

		problem.Instance = c.Request.URL.Path
		if !c.Writer.Written() {
			c.JSON(problem.Status, problem)
		}
		c.Abort()
	}
}

func toProblem(err error) *api.Problem {
	var problem *api.Problem
	if errors.As(err, &problem) {
		return problem
	}
	if verr, ok := validation.As(err); ok {
		return api.ValidationError(verr.Fields)
	}
	if errors.Is(err, store.ErrNotFound) {
		return api.NotFoundError(err.Error())
	}
	return api.InternalError("An unexpected error occurred.", err)
}
