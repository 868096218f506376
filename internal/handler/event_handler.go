package handler

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"sort"
	"time"

	"github.com/SergeiKhy/timewatch-admin/internal/logger"
	"github.com/SergeiKhy/timewatch-admin/internal/metrics"
	"github.com/SergeiKhy/timewatch-admin/internal/models"
	"github.com/SergeiKhy/timewatch-admin/internal/service"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type EventHandler struct {
	service service.EventService
	metrics *metrics.Metrics
	logger  *zap.Logger
	now     func() time.Time
}

func NewEventHandler(service service.EventService, m *metrics.Metrics, log *zap.Logger) *EventHandler {
	return &EventHandler{
		service: service,
		metrics: m,
		logger:  logger.OrNop(log),
		now:     time.Now,
	}
}

type EventPayload struct {
	ID        *FlexInt         `json:"id"`
	Time      string           `json:"time"`
	Title     string           `json:"title"`
	Link      string           `json:"link"`
	Img       string           `json:"img"`
	Category  string           `json:"category" binding:"omitempty,category"`
	Companies []models.Company `json:"companies" binding:"min=1"`
}

func (p *EventPayload) input() models.EventInput {
	return models.EventInput{
		ID:        p.ID.Ptr(),
		Time:      p.Time,
		Title:     p.Title,
		Link:      p.Link,
		Img:       p.Img,
		Category:  models.Category(p.Category),
		Companies: p.Companies,
	}
}

type CreateEventRequest struct {
	Date  string        `json:"date" binding:"required,ymd"`
	Event *EventPayload `json:"event" binding:"required"`
}

type UpdateEventRequest struct {
	Date    string        `json:"date" binding:"omitempty,ymd"`
	Event   *EventPayload `json:"event"`
	OldDate string        `json:"oldDate"`
}

type DeleteEventRequest struct {
	Date    string   `json:"date"`
	EventID *FlexInt `json:"eventId"`
}

type AddDateRequest struct {
	Date string `json:"date"`
}

// EventResponse: событие в том виде, в каком его ждёт календарь
type EventResponse struct {
	Success bool          `json:"success"`
	Message string        `json:"message,omitempty"`
	Event   *models.Event `json:"event,omitempty"`
}

type EventErrorResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// dateGroups сериализуется объектом с датами по убыванию: календарь выводит ключи в порядке ответа
type dateGroups map[string][]models.Event

func (g dateGroups) MarshalJSON() ([]byte, error) {
	dates := make([]string, 0, len(g))
	for date := range g {
		dates = append(dates, date)
	}
	sort.Sort(sort.Reverse(sort.StringSlice(dates)))

	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, date := range dates {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(date)
		if err != nil {
			return nil, err
		}
		events, err := json.Marshal(g[date])
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(events)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

func eventError(c *gin.Context, status int, message string) {
	c.JSON(status, EventErrorResponse{Success: false, Message: message})
}

// List godoc
// @Summary List events grouped by date
// @Tags events
// @Produce json
// @Param date query string false "YYYY-MM-DD"
// @Success 200 {object} map[string]interface{}
// @Failure 401 {object} EventErrorResponse
// @Failure 500 {object} EventErrorResponse
// @Router /api/admin/events [get]
func (h *EventHandler) List(c *gin.Context) {
	grouped, err := h.service.ListGrouped(c.Request.Context(), c.Query("date"))
	if err != nil {
		eventError(c, http.StatusInternalServerError, "이벤트 조회 중 오류가 발생했습니다.")
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "data": dateGroups(grouped)})
}

// ListByDate godoc
// @Summary List events of a single date
// @Tags events
// @Produce json
// @Param date query string true "YYYY-MM-DD"
// @Success 200 {object} map[string]interface{}
// @Failure 400 {object} EventErrorResponse
// @Router /api/admin/events/by-date [get]
func (h *EventHandler) ListByDate(c *gin.Context) {
	date := c.Query("date")
	if date == "" {
		eventError(c, http.StatusBadRequest, "날짜 파라미터가 필요합니다.")
		return
	}

	events, err := h.service.ListByDate(c.Request.Context(), date)
	if err != nil {
		if errors.Is(err, service.ErrInvalidDate) {
			eventError(c, http.StatusBadRequest, err.Error())
			return
		}
		eventError(c, http.StatusInternalServerError, "날짜별 이벤트 조회 중 오류가 발생했습니다.")
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "date": date, "events": events})
}

// Create godoc
// @Summary Create an event
// @Tags events
// @Accept json
// @Produce json
// @Param request body CreateEventRequest true "date and event"
// @Success 200 {object} EventResponse
// @Failure 400 {object} EventErrorResponse
// @Failure 409 {object} EventErrorResponse
// @Router /api/admin/events [post]
func (h *EventHandler) Create(c *gin.Context) {
	var req CreateEventRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Warn("Invalid event create body", zap.Error(err))
		eventError(c, http.StatusBadRequest, bindMessage(err, "날짜와 이벤트 정보가 필요합니다."))
		return
	}

	event, err := h.service.Create(c.Request.Context(), req.Date, req.Event.input())
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, EventResponse{
		Success: true,
		Message: "이벤트가 성공적으로 추가되었습니다.",
		Event:   event,
	})
}

// Update godoc
// @Summary Update or move an event
// @Description Updates in place when oldDate == date, otherwise moves the event to date.
// @Tags events
// @Accept json
// @Produce json
// @Param request body UpdateEventRequest true "date, event with id, oldDate"
// @Success 200 {object} EventResponse
// @Failure 400 {object} EventErrorResponse
// @Failure 404 {object} EventErrorResponse
// @Router /api/admin/events [put]
func (h *EventHandler) Update(c *gin.Context) {
	var req UpdateEventRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Warn("Invalid event update body", zap.Error(err))
		eventError(c, http.StatusBadRequest, bindMessage(err, service.ErrInvalidEventID.Error()))
		return
	}
	if req.Event == nil {
		eventError(c, http.StatusBadRequest, service.ErrInvalidEventID.Error())
		return
	}

	event, outcome, err := h.service.Update(c.Request.Context(), req.Date, req.Event.input(), req.OldDate)
	if err != nil {
		h.respondError(c, err)
		return
	}

	h.metrics.ObserveEventUpdate(string(outcome))

	message := "이벤트가 성공적으로 수정되었습니다."
	switch outcome {
	case service.OutcomeMoved:
		message = "이벤트가 성공적으로 이동되었습니다."
	case service.OutcomeRepaired:
		message = "이벤트가 새 날짜로 이동되었습니다."
	}

	c.JSON(http.StatusOK, EventResponse{Success: true, Message: message, Event: event})
}

// Delete godoc
// @Summary Delete an event
// @Tags events
// @Accept json
// @Produce json
// @Param request body DeleteEventRequest true "date and eventId"
// @Success 200 {object} EventResponse
// @Failure 400 {object} EventErrorResponse
// @Failure 404 {object} EventErrorResponse
// @Router /api/admin/events [delete]
func (h *EventHandler) Delete(c *gin.Context) {
	var req DeleteEventRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Date == "" || req.EventID.Ptr() == nil {
		eventError(c, http.StatusBadRequest, "날짜와 이벤트 ID가 필요합니다.")
		return
	}

	if err := h.service.Delete(c.Request.Context(), req.Date, *req.EventID.Ptr()); err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, EventResponse{Success: true, Message: "이벤트가 성공적으로 삭제되었습니다."})
}

// AddDate godoc
// @Summary Validate a new calendar date
// @Description Dates have no record of their own; this only checks the format and that the date is still empty.
// @Tags events
// @Accept json
// @Produce json
// @Param request body AddDateRequest true "date"
// @Success 200 {object} EventResponse
// @Failure 400 {object} EventErrorResponse
// @Router /api/admin/events/date [post]
func (h *EventHandler) AddDate(c *gin.Context) {
	var req AddDateRequest
	_ = c.ShouldBindJSON(&req)

	if err := h.service.CheckDate(c.Request.Context(), req.Date); err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, EventResponse{Success: true, Message: "날짜가 추가되었습니다."})
}

// Stats godoc
// @Summary Event counters
// @Tags events
// @Produce json
// @Success 200 {object} models.EventStats
// @Router /api/admin/events/stats [get]
func (h *EventHandler) Stats(c *gin.Context) {
	stats, err := h.service.Stats(c.Request.Context(), h.now().Format(models.DateLayout))
	if err != nil {
		h.logger.Error("Failed to compute event stats", zap.Error(err))
		eventError(c, http.StatusInternalServerError, "통계 조회 중 오류가 발생했습니다.")
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "stats": stats})
}

func (h *EventHandler) respondError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrInvalidDate),
		errors.Is(err, service.ErrInvalidCategory),
		errors.Is(err, service.ErrInvalidEventID),
		errors.Is(err, service.ErrMissingOldDate),
		errors.Is(err, service.ErrDateExists):
		eventError(c, http.StatusBadRequest, err.Error())
	case errors.Is(err, service.ErrEventNotFound):
		eventError(c, http.StatusNotFound, "해당 이벤트를 찾을 수 없습니다.")
	case errors.Is(err, service.ErrEventExists):
		eventError(c, http.StatusConflict, "같은 날짜에 같은 ID의 이벤트가 이미 있습니다.")
	default:
		h.logger.Error("Event operation failed", zap.String("path", c.FullPath()), zap.Error(err))
		eventError(c, http.StatusInternalServerError, "이벤트 처리 중 오류가 발생했습니다.")
	}
}
