package handler

import (
	"net/http"
	"strconv"

	"github.com/SergeiKhy/timewatch-admin/internal/logger"
	"github.com/SergeiKhy/timewatch-admin/internal/metrics"
	"github.com/SergeiKhy/timewatch-admin/internal/models"
	"github.com/SergeiKhy/timewatch-admin/internal/service"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type UnmappedHandler struct {
	service service.UnmappedService
	metrics *metrics.Metrics
	logger  *zap.Logger
}

func NewUnmappedHandler(service service.UnmappedService, m *metrics.Metrics, log *zap.Logger) *UnmappedHandler {
	return &UnmappedHandler{service: service, metrics: m, logger: logger.OrNop(log)}
}

// List godoc
// @Summary Domains seen in traffic that have no mapping yet
// @Tags mappings
// @Produce json
// @Param page query int false "page, default 1"
// @Param limit query int false "page size, default 20, max 100"
// @Param sort query string false "visits | recent | domain"
// @Param order query string false "asc | desc"
// @Param search query string false "case-insensitive substring of the URL"
// @Success 200 {object} models.UnmappedPage
// @Failure 403 {object} ErrorResponse
// @Failure 500 {object} ErrorResponse
// @Router /api/admin/unmapped-domains [get]
func (h *UnmappedHandler) List(c *gin.Context) {
	query := models.UnmappedQuery{
		Page:   queryInt(c, "page"),
		Limit:  queryInt(c, "limit"),
		Sort:   models.UnmappedSort(c.Query("sort")),
		Order:  models.SortOrder(c.Query("order")),
		Search: c.Query("search"),
	}

	page, err := h.service.List(c.Request.Context(), query)
	if err != nil {
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: service.ErrAggregationFailed.Error()})
		return
	}

	if query.Search == "" {
		h.metrics.SetUnmappedDomains(page.Pagination.Total)
	}

	c.JSON(http.StatusOK, page)
}

// queryInt: нечисловое значение считается отсутствующим
func queryInt(c *gin.Context, key string) int {
	n, err := strconv.Atoi(c.Query(key))
	if err != nil {
		return 0
	}
	return n
}
