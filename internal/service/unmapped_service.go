package service

import (
	"context"
	"errors"
	"sort"
	"time"

	"github.com/SergeiKhy/timewatch-admin/internal/logger"
	"github.com/SergeiKhy/timewatch-admin/internal/models"
	"github.com/SergeiKhy/timewatch-admin/internal/normalize"
	"github.com/SergeiKhy/timewatch-admin/internal/repository"
	"go.uber.org/zap"
)

var ErrAggregationFailed = errors.New("미매핑 도메인을 조회하는 중 오류가 발생했습니다.")

const (
	defaultUnmappedLimit = 20
	maxUnmappedLimit     = 100
)

type UnmappedService interface {
	List(ctx context.Context, query models.UnmappedQuery) (*models.UnmappedPage, error)
}

type unmappedService struct {
	mappingRepo repository.MappingRepository
	trafficRepo repository.TrafficRepository
	cacheRepo   repository.CacheRepository
	cacheTTL    time.Duration
	logger      *zap.Logger
}

func NewUnmappedService(
	mappingRepo repository.MappingRepository,
	trafficRepo repository.TrafficRepository,
	cacheRepo repository.CacheRepository,
	cacheTTL time.Duration,
	log *zap.Logger,
) UnmappedService {
	if cacheRepo == nil {
		cacheRepo = repository.NewNoopCache()
	}
	return &unmappedService{
		mappingRepo: mappingRepo,
		trafficRepo: trafficRepo,
		cacheRepo:   cacheRepo,
		cacheTTL:    cacheTTL,
		logger:      logger.OrNop(log),
	}
}

func (s *unmappedService) List(ctx context.Context, query models.UnmappedQuery) (*models.UnmappedPage, error) {
	query = NormalizeUnmappedQuery(query)

	mapped, err := s.mappedSet(ctx)
	if err != nil {
		s.logger.Error("Failed to load mapped domains", zap.Error(err))
		return nil, ErrAggregationFailed
	}

	agg := newDomainAggregator(mapped)
	if err := s.trafficRepo.EachUnmappedCandidate(ctx, query.Search, func(v models.Visit) error {
		agg.add(v)
		return nil
	}); err != nil {
		s.logger.Error("Failed to scan traffic log", zap.Error(err))
		return nil, ErrAggregationFailed
	}

	domains := agg.result()
	SortUnmapped(domains, query.Sort, query.Order)

	return Paginate(domains, query.Page, query.Limit), nil
}

// mappedSet: нормализованные домены всех маппингов; legacy-записи без
// normalizedDomain покрываются нормализацией сырого domain
func (s *unmappedService) mappedSet(ctx context.Context) (map[string]struct{}, error) {
	cached, version, err := s.cacheRepo.GetMappedDomains(ctx)
	if err == nil {
		return toSet(cached), nil
	}
	if !errors.Is(err, repository.ErrCacheMiss) {
		s.logger.Warn("Mapped domains cache unavailable", zap.Error(err))
	}

	mappings, err := s.mappingRepo.List(ctx)
	if err != nil {
		return nil, err
	}

	set := make(map[string]struct{}, len(mappings))
	domains := make([]string, 0, len(mappings))
	for _, m := range mappings {
		for _, d := range []string{normalize.Domain(m.Domain), m.NormalizedDomain} {
			if d == "" {
				continue
			}
			if _, ok := set[d]; ok {
				continue
			}
			set[d] = struct{}{}
			domains = append(domains, d)
		}
	}

	// Если маппинги поменялись во время чтения, поколение уже сдвинуто и запись никто не прочтёт
	if err := s.cacheRepo.SetMappedDomains(ctx, version, domains, s.cacheTTL); err != nil {
		s.logger.Warn("Failed to cache mapped domains", zap.Error(err))
	}

	return set, nil
}

func toSet(domains []string) map[string]struct{} {
	set := make(map[string]struct{}, len(domains))
	for _, d := range domains {
		set[d] = struct{}{}
	}
	return set
}

// domainAggregator группирует посещения по нормализованному хосту в порядке первого появления
type domainAggregator struct {
	mapped  map[string]struct{}
	index   map[string]int
	buckets []models.UnmappedDomain
	seen    []map[string]struct{}
}

func newDomainAggregator(mapped map[string]struct{}) *domainAggregator {
	return &domainAggregator{
		mapped: mapped,
		index:  make(map[string]int),
	}
}

func (a *domainAggregator) add(v models.Visit) {
	host := normalize.ExtractHost(v.URL)
	normalized := normalize.Domain(host)
	if normalized == "" {
		return
	}
	if _, ok := a.mapped[normalized]; ok {
		return
	}

	i, ok := a.index[normalized]
	if !ok {
		a.index[normalized] = len(a.buckets)
		a.buckets = append(a.buckets, models.UnmappedDomain{
			Domain:           host,
			NormalizedDomain: normalized,
			VisitCount:       1,
			LastVisit:        v.VisitedAt,
			URLs:             []string{v.URL},
			OriginalURL:      v.URL,
		})
		a.seen = append(a.seen, map[string]struct{}{v.URL: {}})
		return
	}

	b := &a.buckets[i]
	b.VisitCount++
	if v.VisitedAt != nil && (b.LastVisit == nil || v.VisitedAt.After(*b.LastVisit)) {
		b.LastVisit = v.VisitedAt
	}
	if _, dup := a.seen[i][v.URL]; !dup {
		a.seen[i][v.URL] = struct{}{}
		b.URLs = append(b.URLs, v.URL)
	}
}

func (a *domainAggregator) result() []models.UnmappedDomain {
	if a.buckets == nil {
		return []models.UnmappedDomain{}
	}
	return a.buckets
}

// NormalizeUnmappedQuery подставляет значения по умолчанию и ограничивает limit
func NormalizeUnmappedQuery(q models.UnmappedQuery) models.UnmappedQuery {
	if q.Page < 1 {
		q.Page = 1
	}
	switch {
	case q.Limit <= 0:
		q.Limit = defaultUnmappedLimit
	case q.Limit > maxUnmappedLimit:
		q.Limit = maxUnmappedLimit
	}
	switch q.Sort {
	case models.SortByVisits, models.SortByRecent, models.SortByDomain:
	default:
		q.Sort = models.SortByVisits
	}
	if q.Order != models.OrderAsc {
		q.Order = models.OrderDesc
	}
	return q
}

// SortUnmapped сортирует устойчиво: при равенстве ключа сохраняется порядок появления
func SortUnmapped(domains []models.UnmappedDomain, key models.UnmappedSort, order models.SortOrder) {
	var less func(a, b *models.UnmappedDomain) bool
	switch key {
	case models.SortByRecent:
		less = func(a, b *models.UnmappedDomain) bool { return visitTime(a).Before(visitTime(b)) }
	case models.SortByDomain:
		less = func(a, b *models.UnmappedDomain) bool { return a.Domain < b.Domain }
	default:
		less = func(a, b *models.UnmappedDomain) bool { return a.VisitCount < b.VisitCount }
	}

	sort.SliceStable(domains, func(i, j int) bool {
		if order == models.OrderAsc {
			return less(&domains[i], &domains[j])
		}
		return less(&domains[j], &domains[i])
	})
}

func visitTime(d *models.UnmappedDomain) time.Time {
	if d.LastVisit == nil {
		return time.Time{}
	}
	return *d.LastVisit
}

// Paginate режет отсортированный список; page и limit уже нормализованы
func Paginate(domains []models.UnmappedDomain, page, limit int) *models.UnmappedPage {
	if domains == nil {
		domains = []models.UnmappedDomain{}
	}
	total := len(domains)
	totalPages := (total + limit - 1) / limit

	start := (page - 1) * limit
	if start > total {
		start = total
	}
	end := start + limit
	if end > total {
		end = total
	}

	return &models.UnmappedPage{
		Domains: domains[start:end],
		Pagination: models.Pagination{
			Total:      total,
			Page:       page,
			Limit:      limit,
			TotalPages: totalPages,
		},
	}
}
