package v1

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/nulzo/misan-console/internal/listing"
	"github.com/nulzo/misan-console/internal/validation"
	"github.com/nulzo/misan-console/pkg/api"
)

// bindJSON decodes the body into dst. On failure the problem is pushed with
// c.Error and false is returned.
func bindJSON(c *gin.Context, dst any) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		_ = c.Error(api.ValidationError(validation.Fields(err)))
		return false
	}
	return true
}

// pageQuery reads ?search=&page=&page_size=.
func pageQuery(c *gin.Context) (term string, page, size int, ok bool) {
	term = c.Query("search")
	page, err := strconv.Atoi(c.DefaultQuery("page", "1"))
	if err != nil {
		_ = c.Error(api.BadRequestError("Invalid 'page' parameter"))
		return "", 0, 0, false
	}
	size, err = strconv.Atoi(c.DefaultQuery("page_size", strconv.Itoa(listing.DefaultPageSize)))
	if err != nil {
		_ = c.Error(api.BadRequestError("Invalid 'page_size' parameter"))
		return "", 0, 0, false
	}
	return term, page, size, true
}

func listResponse[T any](p listing.Page[T]) api.ListResponse[T] {
	data := p.Items
	if data == nil {
		data = []T{}
	}
	return api.ListResponse[T]{
		Object:     "list",
		Data:       data,
		Page:       p.Page,
		PageSize:   p.PageSize,
		TotalItems: p.TotalItems,
		TotalPages: p.TotalPages,
	}
}

type HealthHandler struct{}

func NewHealthHandler() *HealthHandler {
	return &HealthHandler{}
}

// Health is the liveness probe.
//
// GET /health
func (h *HealthHandler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
