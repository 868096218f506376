package service_test

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/SergeiKhy/timewatch-admin/internal/models"
	"github.com/SergeiKhy/timewatch-admin/internal/service"
	"github.com/SergeiKhy/timewatch-admin/internal/service/mocks"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type unmappedFixture struct {
	svc      service.UnmappedService
	mappings *mocks.MockMappingRepository
	traffic  *mocks.MockTrafficRepository
	cache    *mocks.MockCacheRepository
}

func setupUnmappedService() unmappedFixture {
	f := unmappedFixture{
		mappings: mocks.NewMockMappingRepository(),
		traffic:  mocks.NewMockTrafficRepository(),
		cache:    mocks.NewMockCacheRepository(),
	}
	f.svc = service.NewUnmappedService(f.mappings, f.traffic, f.cache, time.Minute, nil)
	return f
}

var base = time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)

// TestUnmappedService_GroupsByHost: 3 визита на /a и 2 на /b дают одну группу
func TestUnmappedService_GroupsByHost(t *testing.T) {
	f := setupUnmappedService()
	f.traffic.AddVisit("http://shop.example.com/a", base, 3)
	f.traffic.AddVisit("http://shop.example.com/b", base.Add(time.Hour), 2)
	f.traffic.AddNamedVisit("http://named.example.com/", "Named page")

	page, err := f.svc.List(context.Background(), models.UnmappedQuery{})

	require.NoError(t, err)
	require.Len(t, page.Domains, 1)
	d := page.Domains[0]
	assert.Equal(t, "shop.example.com", d.NormalizedDomain)
	assert.Equal(t, "shop.example.com", d.Domain)
	assert.Equal(t, int64(5), d.VisitCount)
	assert.Equal(t, []string{"http://shop.example.com/a", "http://shop.example.com/b"}, d.URLs)
	assert.Equal(t, "http://shop.example.com/a", d.OriginalURL)
	assert.Equal(t, base.Add(time.Hour), *d.LastVisit)
	assert.Equal(t, models.Pagination{Total: 1, Page: 1, Limit: 20, TotalPages: 1}, page.Pagination)
}

// TestUnmappedService_ExcludesMapped: Naver.com в маппинге исключает www.naver.com из трафика
func TestUnmappedService_ExcludesMapped(t *testing.T) {
	f := setupUnmappedService()
	f.mappings.Put(models.Mapping{Name: "Naver", Domain: "Naver.com"})
	f.mappings.Put(models.Mapping{Name: "Daum", Domain: "http://legacy.example", NormalizedDomain: "daum.net"})
	f.traffic.AddVisit("https://www.naver.com/search", base, 2)
	f.traffic.AddVisit("https://daum.net/", base, 1)
	f.traffic.AddVisit("https://coupang.com/", base, 1)

	page, err := f.svc.List(context.Background(), models.UnmappedQuery{})

	require.NoError(t, err)
	require.Len(t, page.Domains, 1)
	assert.Equal(t, "coupang.com", page.Domains[0].NormalizedDomain)
}

func TestUnmappedService_DisplayDomainIsFirstSeen(t *testing.T) {
	f := setupUnmappedService()
	f.traffic.AddVisit("https://www.shop.io/1", base, 1)
	f.traffic.AddVisit("https://shop.io/2", base, 1)

	page, err := f.svc.List(context.Background(), models.UnmappedQuery{})

	require.NoError(t, err)
	require.Len(t, page.Domains, 1)
	assert.Equal(t, "www.shop.io", page.Domains[0].Domain)
	assert.Equal(t, "shop.io", page.Domains[0].NormalizedDomain)
}

// TestUnmappedService_Pagination: page=2, limit=10 из 25 доменов
func TestUnmappedService_Pagination(t *testing.T) {
	f := setupUnmappedService()
	for i := 0; i < 25; i++ {
		f.traffic.AddVisit(fmt.Sprintf("https://site%02d.com/", i), base, 1)
	}

	page, err := f.svc.List(context.Background(), models.UnmappedQuery{Page: 2, Limit: 10})

	require.NoError(t, err)
	assert.Len(t, page.Domains, 10)
	assert.Equal(t, 25, page.Pagination.Total)
	assert.Equal(t, 3, page.Pagination.TotalPages)

	last, err := f.svc.List(context.Background(), models.UnmappedQuery{Page: 3, Limit: 10})
	require.NoError(t, err)
	assert.Len(t, last.Domains, 5)

	beyond, err := f.svc.List(context.Background(), models.UnmappedQuery{Page: 9, Limit: 10})
	require.NoError(t, err)
	assert.Empty(t, beyond.Domains)
	assert.NotNil(t, beyond.Domains)
}

func TestUnmappedService_SortRecentDesc(t *testing.T) {
	f := setupUnmappedService()
	f.traffic.AddVisit("https://old.com/", base, 1)
	f.traffic.AddVisit("https://new.com/", base.Add(48*time.Hour), 1)
	f.traffic.AddVisit("https://mid.com/", base.Add(24*time.Hour), 1)

	page, err := f.svc.List(context.Background(), models.UnmappedQuery{Sort: models.SortByRecent, Order: models.OrderDesc})

	require.NoError(t, err)
	require.Len(t, page.Domains, 3)
	assert.Equal(t, "new.com", page.Domains[0].Domain)
	assert.Equal(t, "mid.com", page.Domains[1].Domain)
	assert.Equal(t, "old.com", page.Domains[2].Domain)
}

func TestUnmappedService_Search(t *testing.T) {
	f := setupUnmappedService()
	f.traffic.AddVisit("https://Shop.example.com/a", base, 1)
	f.traffic.AddVisit("https://other.com/", base, 1)

	page, err := f.svc.List(context.Background(), models.UnmappedQuery{Search: "shop"})

	require.NoError(t, err)
	require.Len(t, page.Domains, 1)
	assert.Equal(t, "shop.example.com", page.Domains[0].NormalizedDomain)
}

func TestUnmappedService_UsesCache(t *testing.T) {
	f := setupUnmappedService()
	f.mappings.Put(models.Mapping{Name: "A", Domain: "a.com"})
	f.traffic.AddVisit("https://a.com/", base, 1)
	ctx := context.Background()

	_, err := f.svc.List(ctx, models.UnmappedQuery{})
	require.NoError(t, err)
	assert.True(t, f.cache.Warm())

	_, err = f.svc.List(ctx, models.UnmappedQuery{})
	require.NoError(t, err)
	assert.Equal(t, 1, f.mappings.ListCalls)
}

// TestUnmappedService_InvalidationDuringRead: маппинг создан, пока список читался;
// устаревший снимок не должен остаться в кэше
func TestUnmappedService_InvalidationDuringRead(t *testing.T) {
	f := setupUnmappedService()
	mappingSvc := service.NewMappingService(f.mappings, f.cache, nil)
	f.traffic.AddVisit("https://b.com/", base, 2)
	ctx := context.Background()

	fired := false
	f.mappings.OnList = func() {
		if fired {
			return
		}
		fired = true
		_, err := mappingSvc.Create(ctx, models.MappingInput{Name: "B", Domain: "b.com"})
		require.NoError(t, err)
	}

	page, err := f.svc.List(ctx, models.UnmappedQuery{})
	require.NoError(t, err)
	assert.Len(t, page.Domains, 1)
	assert.False(t, f.cache.Warm())
	assert.Equal(t, 1, f.cache.StaleWrites)

	page, err = f.svc.List(ctx, models.UnmappedQuery{})
	require.NoError(t, err)
	assert.Empty(t, page.Domains)
	assert.True(t, f.cache.Warm())
}

func TestUnmappedService_AggregationFailed(t *testing.T) {
	f := setupUnmappedService()
	f.traffic.Err = errors.New("cursor killed")

	_, err := f.svc.List(context.Background(), models.UnmappedQuery{})
	assert.ErrorIs(t, err, service.ErrAggregationFailed)

	f = setupUnmappedService()
	f.mappings.Err = errors.New("timeout")

	_, err = f.svc.List(context.Background(), models.UnmappedQuery{})
	assert.ErrorIs(t, err, service.ErrAggregationFailed)
}

func TestNormalizeUnmappedQuery(t *testing.T) {
	tests := []struct {
		name string
		in   models.UnmappedQuery
		want models.UnmappedQuery
	}{
		{
			name: "defaults",
			in:   models.UnmappedQuery{},
			want: models.UnmappedQuery{Page: 1, Limit: 20, Sort: models.SortByVisits, Order: models.OrderDesc},
		},
		{
			name: "clamps limit",
			in:   models.UnmappedQuery{Page: -3, Limit: 5000, Sort: models.SortByDomain, Order: models.OrderAsc},
			want: models.UnmappedQuery{Page: 1, Limit: 100, Sort: models.SortByDomain, Order: models.OrderAsc},
		},
		{
			name: "unknown sort and order",
			in:   models.UnmappedQuery{Page: 2, Limit: 10, Sort: "size", Order: "up"},
			want: models.UnmappedQuery{Page: 2, Limit: 10, Sort: models.SortByVisits, Order: models.OrderDesc},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, service.NormalizeUnmappedQuery(tt.in))
		})
	}
}

// TestSortUnmapped_StableTies: при равных ключах порядок появления сохраняется
func TestSortUnmapped_StableTies(t *testing.T) {
	domains := []models.UnmappedDomain{
		{Domain: "b.com", VisitCount: 2},
		{Domain: "a.com", VisitCount: 5},
		{Domain: "c.com", VisitCount: 2},
		{Domain: "d.com", VisitCount: 2},
	}

	service.SortUnmapped(domains, models.SortByVisits, models.OrderDesc)

	got := []string{}
	for _, d := range domains {
		got = append(got, d.Domain)
	}
	assert.Equal(t, []string{"a.com", "b.com", "c.com", "d.com"}, got)

	service.SortUnmapped(domains, models.SortByDomain, models.OrderAsc)
	assert.Equal(t, "a.com", domains[0].Domain)
	assert.Equal(t, "d.com", domains[3].Domain)
}

func TestPaginate_Empty(t *testing.T) {
	page := service.Paginate([]models.UnmappedDomain{}, 1, 20)

	assert.Empty(t, page.Domains)
	assert.Equal(t, 0, page.Pagination.TotalPages)

	// nil-вход всё равно сериализуется как []
	page = service.Paginate(nil, 3, 20)
	assert.NotNil(t, page.Domains)
	assert.Empty(t, page.Domains)
}
