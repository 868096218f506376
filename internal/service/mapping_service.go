package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/SergeiKhy/timewatch-admin/internal/logger"
	"github.com/SergeiKhy/timewatch-admin/internal/models"
	"github.com/SergeiKhy/timewatch-admin/internal/normalize"
	"github.com/SergeiKhy/timewatch-admin/internal/repository"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

// Ошибки сервиса маппингов
var (
	ErrMissingFields    = errors.New("이름과 도메인은 필수 입력 항목입니다.")
	ErrInvalidMappingID = errors.New("매핑 ID가 올바르지 않습니다.")
	ErrInvalidDomain    = errors.New("도메인을 정규화할 수 없습니다.")
	ErrDuplicateDomain  = errors.New("이미 등록된 도메인입니다.")

	ErrMappingNotFound = repository.ErrMappingNotFound
)

type MappingService interface {
	List(ctx context.Context) ([]models.Mapping, error)
	Create(ctx context.Context, input models.MappingInput) (*models.Mapping, error)
	Update(ctx context.Context, id string, input models.MappingInput) (*models.Mapping, error)
	Delete(ctx context.Context, id string) error
	// Backfill дописывает normalizedDomain старым записям; возвращает число исправленных и конфликтных
	Backfill(ctx context.Context) (fixed int, conflicts []models.Mapping, err error)
}

type mappingService struct {
	mappingRepo repository.MappingRepository
	cacheRepo   repository.CacheRepository
	logger      *zap.Logger
	now         func() time.Time
}

func NewMappingService(mappingRepo repository.MappingRepository, cacheRepo repository.CacheRepository, log *zap.Logger) MappingService {
	if cacheRepo == nil {
		cacheRepo = repository.NewNoopCache()
	}
	return &mappingService{
		mappingRepo: mappingRepo,
		cacheRepo:   cacheRepo,
		logger:      logger.OrNop(log),
		now:         time.Now,
	}
}

func (s *mappingService) List(ctx context.Context) ([]models.Mapping, error) {
	mappings, err := s.mappingRepo.List(ctx)
	if err != nil {
		s.logger.Error("Failed to list mappings", zap.Error(err))
		return nil, err
	}
	return mappings, nil
}

func (s *mappingService) Create(ctx context.Context, input models.MappingInput) (*models.Mapping, error) {
	normalized, err := checkMappingInput(input)
	if err != nil {
		return nil, err
	}

	conflict, err := s.mappingRepo.FindConflict(ctx, normalized, input.Domain, nil)
	if err != nil {
		s.logger.Error("Failed to check domain conflict", zap.String("domain", input.Domain), zap.Error(err))
		return nil, err
	}
	if conflict != nil {
		return nil, ErrDuplicateDomain
	}

	now := s.now()
	mapping := &models.Mapping{
		Name:             input.Name,
		Domain:           input.Domain,
		NormalizedDomain: normalized,
		Keyword:          cleanKeywords(input.Keyword),
		CreatedAt:        &now,
	}

	if err := s.mappingRepo.Insert(ctx, mapping); err != nil {
		// уникальный индекс ловит гонку двух одновременных Create
		if errors.Is(err, repository.ErrDuplicateKey) {
			return nil, ErrDuplicateDomain
		}
		s.logger.Error("Failed to create mapping", zap.String("domain", input.Domain), zap.Error(err))
		return nil, err
	}

	s.invalidate(ctx)
	s.logger.Info("Mapping created", zap.String("id", mapping.ID.Hex()), zap.String("normalized_domain", normalized))
	return mapping, nil
}

func (s *mappingService) Update(ctx context.Context, id string, input models.MappingInput) (*models.Mapping, error) {
	objectID, err := parseMappingID(id)
	if err != nil {
		return nil, err
	}
	normalized, err := checkMappingInput(input)
	if err != nil {
		return nil, err
	}

	existing, err := s.mappingRepo.FindByID(ctx, objectID)
	if err != nil {
		return nil, err
	}

	conflict, err := s.mappingRepo.FindConflict(ctx, normalized, input.Domain, &objectID)
	if err != nil {
		s.logger.Error("Failed to check domain conflict", zap.String("domain", input.Domain), zap.Error(err))
		return nil, err
	}
	if conflict != nil {
		return nil, ErrDuplicateDomain
	}

	now := s.now()
	updated, err := s.mappingRepo.Update(ctx, &models.Mapping{
		ID:               objectID,
		Name:             input.Name,
		Domain:           input.Domain,
		NormalizedDomain: normalized,
		Keyword:          cleanKeywords(input.Keyword),
		CreatedAt:        existing.CreatedAt,
		UpdatedAt:        &now,
	})
	if err != nil {
		if errors.Is(err, repository.ErrDuplicateKey) {
			return nil, ErrDuplicateDomain
		}
		if !errors.Is(err, repository.ErrMappingNotFound) {
			s.logger.Error("Failed to update mapping", zap.String("id", id), zap.Error(err))
		}
		return nil, err
	}

	s.invalidate(ctx)
	s.logger.Info("Mapping updated", zap.String("id", id), zap.String("normalized_domain", normalized))
	return updated, nil
}

func (s *mappingService) Delete(ctx context.Context, id string) error {
	objectID, err := parseMappingID(id)
	if err != nil {
		return err
	}

	if err := s.mappingRepo.Delete(ctx, objectID); err != nil {
		if !errors.Is(err, repository.ErrMappingNotFound) {
			s.logger.Error("Failed to delete mapping", zap.String("id", id), zap.Error(err))
		}
		return err
	}

	s.invalidate(ctx)
	s.logger.Info("Mapping deleted", zap.String("id", id))
	return nil
}

func (s *mappingService) Backfill(ctx context.Context) (int, []models.Mapping, error) {
	legacy, err := s.mappingRepo.ListMissingNormalized(ctx)
	if err != nil {
		return 0, nil, err
	}

	fixed := 0
	conflicts := []models.Mapping{}
	for _, m := range legacy {
		normalized := normalize.Domain(m.Domain)
		if normalized == "" {
			conflicts = append(conflicts, m)
			continue
		}

		err := s.mappingRepo.SetNormalized(ctx, m.ID, normalized)
		switch {
		case err == nil:
			fixed++
		case errors.Is(err, repository.ErrDuplicateKey):
			m.NormalizedDomain = normalized
			conflicts = append(conflicts, m)
		default:
			return fixed, conflicts, err
		}
	}

	if fixed > 0 {
		s.invalidate(ctx)
	}
	s.logger.Info("Mapping backfill finished", zap.Int("fixed", fixed), zap.Int("conflicts", len(conflicts)))
	return fixed, conflicts, nil
}

// invalidate сбрасывает кэш множества доменов; ошибка кэша не отменяет запись
func (s *mappingService) invalidate(ctx context.Context) {
	if err := s.cacheRepo.InvalidateMappedDomains(ctx); err != nil {
		s.logger.Warn("Failed to invalidate mapped domains cache", zap.Error(err))
	}
}

func checkMappingInput(input models.MappingInput) (string, error) {
	if strings.TrimSpace(input.Name) == "" || strings.TrimSpace(input.Domain) == "" {
		return "", ErrMissingFields
	}

	normalized := normalize.Domain(input.Domain)
	if normalized == "" {
		return "", ErrInvalidDomain
	}

	return normalized, nil
}

func parseMappingID(id string) (primitive.ObjectID, error) {
	if id == "" {
		return primitive.NilObjectID, ErrInvalidMappingID
	}
	objectID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return primitive.NilObjectID, ErrInvalidMappingID
	}
	return objectID, nil
}

// cleanKeywords: обрезка пробелов, без пустых и повторов, порядок сохраняется
func cleanKeywords(keywords []string) []string {
	out := make([]string, 0, len(keywords))
	seen := make(map[string]struct{}, len(keywords))
	for _, k := range keywords {
		k = strings.TrimSpace(k)
		if k == "" {
			continue
		}
		if _, dup := seen[k]; dup {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, k)
	}
	return out
}
