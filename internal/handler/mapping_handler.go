package handler

import (
	"errors"
	"net/http"

	"github.com/SergeiKhy/timewatch-admin/internal/logger"
	"github.com/SergeiKhy/timewatch-admin/internal/models"
	"github.com/SergeiKhy/timewatch-admin/internal/service"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type MappingHandler struct {
	service service.MappingService
	logger  *zap.Logger
}

func NewMappingHandler(service service.MappingService, log *zap.Logger) *MappingHandler {
	return &MappingHandler{service: service, logger: logger.OrNop(log)}
}

type MappingRequest struct {
	ID      string     `json:"_id"`
	Name    string     `json:"name"`
	Domain  string     `json:"domain"`
	Keyword StringList `json:"keyword"`
}

func (r MappingRequest) input() models.MappingInput {
	return models.MappingInput{Name: r.Name, Domain: r.Domain, Keyword: r.Keyword}
}

type ErrorResponse struct {
	Error string `json:"error"`
}

type CreateMappingResponse struct {
	Message string          `json:"message"`
	ID      string          `json:"id"`
	Mapping *models.Mapping `json:"mapping"`
}

type UpdateMappingResponse struct {
	Message string          `json:"message"`
	Mapping *models.Mapping `json:"mapping"`
}

type DeleteMappingResponse struct {
	Message string `json:"message"`
	ID      string `json:"_id"`
}

// List godoc
// @Summary List domain mappings
// @Tags mappings
// @Produce json
// @Success 200 {array} models.Mapping
// @Failure 403 {object} ErrorResponse
// @Router /api/admin/mappings [get]
func (h *MappingHandler) List(c *gin.Context) {
	mappings, err := h.service.List(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "매핑 데이터를 가져오는 중 오류가 발생했습니다."})
		return
	}

	c.JSON(http.StatusOK, mappings)
}

// Create godoc
// @Summary Create a domain mapping
// @Tags mappings
// @Accept json
// @Produce json
// @Param request body MappingRequest true "name, domain, keyword"
// @Success 201 {object} CreateMappingResponse
// @Failure 400 {object} ErrorResponse
// @Router /api/admin/mappings [post]
func (h *MappingHandler) Create(c *gin.Context) {
	var req MappingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: service.ErrMissingFields.Error()})
		return
	}

	mapping, err := h.service.Create(c.Request.Context(), req.input())
	if err != nil {
		h.respondError(c, err, "매핑 생성 중 오류가 발생했습니다.")
		return
	}

	c.JSON(http.StatusCreated, CreateMappingResponse{
		Message: "매핑이 성공적으로 생성되었습니다.",
		ID:      mapping.ID.Hex(),
		Mapping: mapping,
	})
}

// Update godoc
// @Summary Update a domain mapping
// @Tags mappings
// @Accept json
// @Produce json
// @Param request body MappingRequest true "_id, name, domain, keyword"
// @Success 200 {object} UpdateMappingResponse
// @Failure 400 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Router /api/admin/mappings [put]
func (h *MappingHandler) Update(c *gin.Context) {
	var req MappingRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.ID == "" || req.Name == "" || req.Domain == "" {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "매핑 ID, 이름, 도메인은 필수 입력 항목입니다."})
		return
	}

	mapping, err := h.service.Update(c.Request.Context(), req.ID, req.input())
	if err != nil {
		h.respondError(c, err, "매핑 업데이트 중 오류가 발생했습니다.")
		return
	}

	c.JSON(http.StatusOK, UpdateMappingResponse{
		Message: "매핑이 성공적으로 업데이트되었습니다.",
		Mapping: mapping,
	})
}

// Delete godoc
// @Summary Delete a domain mapping
// @Tags mappings
// @Accept json
// @Produce json
// @Param request body MappingRequest true "_id"
// @Success 200 {object} DeleteMappingResponse
// @Failure 400 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Router /api/admin/mappings [delete]
func (h *MappingHandler) Delete(c *gin.Context) {
	var req MappingRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.ID == "" {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "매핑 ID는 필수 입력 항목입니다."})
		return
	}

	if err := h.service.Delete(c.Request.Context(), req.ID); err != nil {
		h.respondError(c, err, "매핑 삭제 중 오류가 발생했습니다.")
		return
	}

	c.JSON(http.StatusOK, DeleteMappingResponse{Message: "매핑이 성공적으로 삭제되었습니다.", ID: req.ID})
}

func (h *MappingHandler) respondError(c *gin.Context, err error, fallback string) {
	switch {
	case errors.Is(err, service.ErrMissingFields),
		errors.Is(err, service.ErrInvalidMappingID),
		errors.Is(err, service.ErrInvalidDomain),
		errors.Is(err, service.ErrDuplicateDomain):
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
	case errors.Is(err, service.ErrMappingNotFound):
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "해당 ID의 매핑을 찾을 수 없습니다."})
	default:
		h.logger.Error("Mapping operation failed", zap.String("method", c.Request.Method), zap.Error(err))
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: fallback})
	}
}
