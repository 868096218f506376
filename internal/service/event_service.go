package service

import (
	"context"
	"errors"
	"time"

	"github.com/SergeiKhy/timewatch-admin/internal/logger"
	"github.com/SergeiKhy/timewatch-admin/internal/models"
	"github.com/SergeiKhy/timewatch-admin/internal/repository"
	"go.uber.org/zap"
)

// Ошибки сервиса событий
var (
	ErrInvalidDate     = errors.New("날짜 형식이 올바르지 않습니다. YYYY-MM-DD 형식으로 입력하세요.")
	ErrInvalidCategory = errors.New("알 수 없는 카테고리입니다.")
	ErrInvalidEventID  = errors.New("이벤트 정보와 ID가 필요합니다.")
	ErrMissingOldDate  = errors.New("기존 이벤트 날짜(oldDate)가 필요합니다.")
	ErrDateExists      = errors.New("해당 날짜가 이미 존재합니다.")

	ErrEventNotFound = repository.ErrEventNotFound
	ErrEventExists   = repository.ErrEventExists
)

// UpdateOutcome: какая ветка обновления сработала
type UpdateOutcome string

const (
	// OutcomeUpdated: запись найдена по (oldDate, id), дата не менялась
	OutcomeUpdated UpdateOutcome = "updated"
	// OutcomeMoved: запись найдена по (oldDate, id) и перенесена на новую дату
	OutcomeMoved UpdateOutcome = "moved"
	// OutcomeRepaired: oldDate устарел, запись найдена по id и перенесена
	OutcomeRepaired UpdateOutcome = "repaired"
)

type EventService interface {
	ListGrouped(ctx context.Context, date string) (map[string][]models.Event, error)
	ListByDate(ctx context.Context, date string) ([]models.Event, error)
	Create(ctx context.Context, date string, input models.EventInput) (*models.Event, error)
	Delete(ctx context.Context, date string, eventID int64) error
	Update(ctx context.Context, date string, input models.EventInput, oldDate string) (*models.Event, UpdateOutcome, error)
	CheckDate(ctx context.Context, date string) error
	Stats(ctx context.Context, today string) (*models.EventStats, error)
}

type eventService struct {
	eventRepo repository.EventRepository
	logger    *zap.Logger
	now       func() time.Time
}

func NewEventService(eventRepo repository.EventRepository, log *zap.Logger) EventService {
	return &eventService{
		eventRepo: eventRepo,
		logger:    logger.OrNop(log),
		now:       time.Now,
	}
}

// ListGrouped группирует события по дате; пустой date означает все даты
func (s *eventService) ListGrouped(ctx context.Context, date string) (map[string][]models.Event, error) {
	events, err := s.eventRepo.List(ctx, date)
	if err != nil {
		s.logger.Error("Failed to list events", zap.String("date", date), zap.Error(err))
		return nil, err
	}

	grouped := make(map[string][]models.Event)
	for _, e := range events {
		grouped[e.Date] = append(grouped[e.Date], withDefaults(e))
	}

	return grouped, nil
}

func (s *eventService) ListByDate(ctx context.Context, date string) ([]models.Event, error) {
	if !models.ValidDate(date) {
		return nil, ErrInvalidDate
	}

	events, err := s.eventRepo.List(ctx, date)
	if err != nil {
		s.logger.Error("Failed to list events by date", zap.String("date", date), zap.Error(err))
		return nil, err
	}

	for i := range events {
		events[i] = withDefaults(events[i])
	}

	return events, nil
}

func (s *eventService) Create(ctx context.Context, date string, input models.EventInput) (*models.Event, error) {
	if !models.ValidDate(date) {
		return nil, ErrInvalidDate
	}
	category, err := checkCategory(input.Category)
	if err != nil {
		return nil, err
	}

	var eventID int64
	if input.ID != nil && *input.ID > 0 {
		eventID = *input.ID
	} else {
		eventID, err = s.eventRepo.NextEventID(ctx)
		if err != nil {
			s.logger.Error("Failed to allocate event id", zap.Error(err))
			return nil, err
		}
	}

	now := s.now()
	event := buildEvent(date, eventID, input, category)
	event.CreatedAt = &now

	if err := s.eventRepo.Insert(ctx, event); err != nil {
		if !errors.Is(err, repository.ErrEventExists) {
			s.logger.Error("Failed to create event", zap.Int64("event_id", eventID), zap.Error(err))
		}
		return nil, err
	}

	s.logger.Info("Event created", zap.String("date", date), zap.Int64("event_id", eventID))
	return event, nil
}

func (s *eventService) Delete(ctx context.Context, date string, eventID int64) error {
	if date == "" {
		return ErrInvalidDate
	}
	if eventID <= 0 {
		return ErrInvalidEventID
	}

	deleted, err := s.eventRepo.DeleteByKey(ctx, date, eventID)
	if err != nil {
		s.logger.Error("Failed to delete event", zap.Int64("event_id", eventID), zap.Error(err))
		return err
	}
	if !deleted {
		return ErrEventNotFound
	}

	s.logger.Info("Event deleted", zap.String("date", date), zap.Int64("event_id", eventID))
	return nil
}

// Update разбирает три случая:
//
//	(oldDate, id) найден, oldDate == date  -> правка на месте           (Updated)
//	(oldDate, id) найден, oldDate != date  -> удалить и вставить на date (Moved)
//	(oldDate, id) не найден, id найден     -> удалить копию, вставить    (Repaired)
//
// Если id не найден нигде, возвращается ErrEventNotFound.
func (s *eventService) Update(ctx context.Context, date string, input models.EventInput, oldDate string) (*models.Event, UpdateOutcome, error) {
	if input.ID == nil || *input.ID <= 0 {
		return nil, "", ErrInvalidEventID
	}
	if oldDate == "" {
		return nil, "", ErrMissingOldDate
	}
	if !models.ValidDate(date) {
		return nil, "", ErrInvalidDate
	}
	category, err := checkCategory(input.Category)
	if err != nil {
		return nil, "", err
	}
	eventID := *input.ID

	existing, err := s.eventRepo.FindByKey(ctx, oldDate, eventID)
	switch {
	case err == nil && oldDate == date:
		return s.updateInPlace(ctx, date, eventID, input, category)
	case err == nil:
		return s.move(ctx, existing, date, input, category)
	case errors.Is(err, repository.ErrEventNotFound):
		return s.repair(ctx, oldDate, date, eventID, input, category)
	default:
		s.logger.Error("Failed to look up event", zap.Int64("event_id", eventID), zap.Error(err))
		return nil, "", err
	}
}

func (s *eventService) updateInPlace(ctx context.Context, date string, eventID int64, input models.EventInput, category models.Category) (*models.Event, UpdateOutcome, error) {
	fields := models.EventFields{
		Time:      input.Time,
		Title:     input.Title,
		Link:      input.Link,
		Img:       input.Img,
		Category:  category,
		Companies: companiesOrEmpty(input.Companies),
		UpdatedAt: s.now(),
	}

	event, err := s.eventRepo.UpdateFields(ctx, date, eventID, fields)
	if err != nil {
		if !errors.Is(err, repository.ErrEventNotFound) {
			s.logger.Error("Failed to update event", zap.Int64("event_id", eventID), zap.Error(err))
		}
		return nil, "", err
	}

	s.logger.Info("Event updated", zap.String("date", date), zap.Int64("event_id", eventID))
	return event, OutcomeUpdated, nil
}

// move сначала пишет копию под новой датой и только потом убирает старую:
// если вставка не удалась, исходная запись остаётся на месте
func (s *eventService) move(ctx context.Context, existing *models.Event, date string, input models.EventInput, category models.Category) (*models.Event, UpdateOutcome, error) {
	eventID := existing.EventID

	event, err := s.reinsert(ctx, date, eventID, input, category, existing.CreatedAt)
	if err != nil {
		return nil, "", err
	}

	deleted, err := s.eventRepo.DeleteByKey(ctx, existing.Date, eventID)
	if err == nil && !deleted {
		s.logger.Warn("Old copy vanished before move, deleting by id",
			zap.String("old_date", existing.Date), zap.Int64("event_id", eventID))
		_, err = s.eventRepo.DeleteByIDExcept(ctx, eventID, date)
	}
	if err != nil {
		// Правка уже сохранена под новой датой; старая копия остаётся дублем
		s.logger.Error("Failed to remove old copy after move",
			zap.String("old_date", existing.Date), zap.Int64("event_id", eventID), zap.Error(err))
	}

	s.logger.Info("Event moved",
		zap.String("from", existing.Date), zap.String("to", date), zap.Int64("event_id", eventID))
	return event, OutcomeMoved, nil
}

func (s *eventService) repair(ctx context.Context, oldDate, date string, eventID int64, input models.EventInput, category models.Category) (*models.Event, UpdateOutcome, error) {
	actual, err := s.eventRepo.FindByID(ctx, eventID)
	if err != nil {
		if !errors.Is(err, repository.ErrEventNotFound) {
			s.logger.Error("Failed to look up event by id", zap.Int64("event_id", eventID), zap.Error(err))
		}
		return nil, "", err
	}

	s.logger.Warn("Event found under a different date than oldDate",
		zap.String("old_date", oldDate), zap.String("stored_date", actual.Date), zap.Int64("event_id", eventID))

	// Запись уже лежит под целевой датой: достаточно обновить поля
	if actual.Date == date {
		event, _, err := s.updateInPlace(ctx, date, eventID, input, category)
		if err != nil {
			return nil, "", err
		}
		return event, OutcomeRepaired, nil
	}

	event, err := s.reinsert(ctx, date, eventID, input, category, actual.CreatedAt)
	if err != nil {
		return nil, "", err
	}

	// Ключ (date, id) теперь занят новой копией, его удалять нельзя
	deleted := false
	if oldDate != date {
		deleted, err = s.eventRepo.DeleteByKey(ctx, oldDate, eventID)
	}
	if err == nil && !deleted {
		_, err = s.eventRepo.DeleteByKey(ctx, actual.Date, eventID)
	}
	if err != nil {
		s.logger.Error("Failed to remove old copy after repair",
			zap.String("stored_date", actual.Date), zap.Int64("event_id", eventID), zap.Error(err))
	}

	s.logger.Info("Event repaired",
		zap.String("from", actual.Date), zap.String("to", date), zap.Int64("event_id", eventID))
	return event, OutcomeRepaired, nil
}

func (s *eventService) reinsert(ctx context.Context, date string, eventID int64, input models.EventInput, category models.Category, createdAt *time.Time) (*models.Event, error) {
	now := s.now()
	event := buildEvent(date, eventID, input, category)
	event.CreatedAt = createdAt
	event.UpdatedAt = &now

	if err := s.eventRepo.Insert(ctx, event); err != nil {
		s.logger.Error("Failed to insert moved event", zap.String("date", date), zap.Int64("event_id", eventID), zap.Error(err))
		return nil, err
	}

	return event, nil
}

// CheckDate проверяет, что дату можно "добавить": даты появляются вместе с первым событием
func (s *eventService) CheckDate(ctx context.Context, date string) error {
	if !models.ValidDate(date) {
		return ErrInvalidDate
	}

	n, err := s.eventRepo.CountByDate(ctx, date)
	if err != nil {
		s.logger.Error("Failed to count events by date", zap.String("date", date), zap.Error(err))
		return err
	}
	if n > 0 {
		return ErrDateExists
	}

	return nil
}

func (s *eventService) Stats(ctx context.Context, today string) (*models.EventStats, error) {
	total, err := s.eventRepo.Count(ctx)
	if err != nil {
		return nil, err
	}

	todayCount, err := s.eventRepo.CountByDate(ctx, today)
	if err != nil {
		return nil, err
	}

	counts, err := s.eventRepo.CountByCategory(ctx)
	if err != nil {
		return nil, err
	}

	stats := &models.EventStats{
		Total:      total,
		Today:      todayCount,
		ByCategory: make(map[models.Category]int64, len(models.Categories)),
	}
	for _, c := range models.Categories {
		stats.ByCategory[c] = 0
	}
	for c, n := range counts {
		stats.ByCategory[c] += n
	}

	return stats, nil
}

func checkCategory(c models.Category) (models.Category, error) {
	c = c.OrDefault()
	if !c.IsValid() {
		return "", ErrInvalidCategory
	}
	return c, nil
}

func buildEvent(date string, eventID int64, input models.EventInput, category models.Category) *models.Event {
	return &models.Event{
		EventID:   eventID,
		Date:      date,
		Time:      input.Time,
		Title:     input.Title,
		Link:      input.Link,
		Img:       input.Img,
		Category:  category,
		Companies: companiesOrEmpty(input.Companies),
	}
}

func withDefaults(e models.Event) models.Event {
	e.Category = e.Category.OrDefault()
	e.Companies = companiesOrEmpty(e.Companies)
	return e
}

func companiesOrEmpty(companies []models.Company) []models.Company {
	if companies == nil {
		return []models.Company{}
	}
	return companies
}
