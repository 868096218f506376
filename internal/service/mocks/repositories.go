package mocks

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/SergeiKhy/timewatch-admin/internal/models"
	"github.com/SergeiKhy/timewatch-admin/internal/repository"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

type eventKey struct {
	date string
	id   int64
}

// MockEventRepository implements repository.EventRepository for testing
type MockEventRepository struct {
	mu     sync.RWMutex
	events map[eventKey]models.Event
	seq    int64

	// Err возвращается всеми методами, если задан
	Err error
	// StaleDeleteByKey делает DeleteByKey «промахивающимся», как при рассинхронизации ключа
	StaleDeleteByKey bool
	// StaleUpdate заставляет UpdateFields не находить запись
	StaleUpdate bool

	// InsertErr возвращается из Insert, если задан
	InsertErr error

	DeleteByKeyCalls []string
	DeleteByIDCalls  int
}

func NewMockEventRepository() *MockEventRepository {
	return &MockEventRepository{events: make(map[eventKey]models.Event)}
}

// Put кладёт событие напрямую, минуя счётчик
func (m *MockEventRepository) Put(event models.Event) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events[eventKey{event.Date, event.EventID}] = event
}

func (m *MockEventRepository) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.events)
}

func (m *MockEventRepository) List(ctx context.Context, date string) ([]models.Event, error) {
	if m.Err != nil {
		return nil, m.Err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	events := []models.Event{}
	for _, e := range m.events {
		if date == "" || e.Date == date {
			events = append(events, e)
		}
	}
	sort.SliceStable(events, func(i, j int) bool {
		if events[i].Date != events[j].Date {
			return events[i].Date > events[j].Date
		}
		if events[i].Time != events[j].Time {
			return events[i].Time < events[j].Time
		}
		return events[i].EventID < events[j].EventID
	})
	return events, nil
}

func (m *MockEventRepository) FindByKey(ctx context.Context, date string, eventID int64) (*models.Event, error) {
	if m.Err != nil {
		return nil, m.Err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	e, ok := m.events[eventKey{date, eventID}]
	if !ok {
		return nil, repository.ErrEventNotFound
	}
	return &e, nil
}

func (m *MockEventRepository) FindByID(ctx context.Context, eventID int64) (*models.Event, error) {
	if m.Err != nil {
		return nil, m.Err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	// при нескольких копиях возвращается самая ранняя дата, чтобы тесты были детерминированы
	var found *models.Event
	for _, e := range m.events {
		if e.EventID == eventID && (found == nil || e.Date < found.Date) {
			e := e
			found = &e
		}
	}
	if found == nil {
		return nil, repository.ErrEventNotFound
	}
	return found, nil
}

func (m *MockEventRepository) NextEventID(ctx context.Context) (int64, error) {
	if m.Err != nil {
		return 0, m.Err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	for k := range m.events {
		if k.id > m.seq {
			m.seq = k.id
		}
	}
	m.seq++
	return m.seq, nil
}

func (m *MockEventRepository) Insert(ctx context.Context, event *models.Event) error {
	if m.Err != nil {
		return m.Err
	}
	if m.InsertErr != nil {
		return m.InsertErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	key := eventKey{event.Date, event.EventID}
	if _, exists := m.events[key]; exists {
		return repository.ErrEventExists
	}
	m.events[key] = *event
	return nil
}

func (m *MockEventRepository) UpdateFields(ctx context.Context, date string, eventID int64, fields models.EventFields) (*models.Event, error) {
	if m.Err != nil {
		return nil, m.Err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	key := eventKey{date, eventID}
	e, ok := m.events[key]
	if !ok || m.StaleUpdate {
		return nil, repository.ErrEventNotFound
	}

	updatedAt := fields.UpdatedAt
	e.Time = fields.Time
	e.Title = fields.Title
	e.Link = fields.Link
	e.Img = fields.Img
	e.Category = fields.Category
	e.Companies = fields.Companies
	e.UpdatedAt = &updatedAt
	m.events[key] = e
	return &e, nil
}

func (m *MockEventRepository) DeleteByKey(ctx context.Context, date string, eventID int64) (bool, error) {
	if m.Err != nil {
		return false, m.Err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	m.DeleteByKeyCalls = append(m.DeleteByKeyCalls, date)
	if m.StaleDeleteByKey && len(m.DeleteByKeyCalls) == 1 {
		return false, nil
	}

	key := eventKey{date, eventID}
	if _, ok := m.events[key]; !ok {
		return false, nil
	}
	delete(m.events, key)
	return true, nil
}

func (m *MockEventRepository) DeleteByIDExcept(ctx context.Context, eventID int64, keepDate string) (bool, error) {
	if m.Err != nil {
		return false, m.Err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	m.DeleteByIDCalls++
	for k := range m.events {
		if k.id == eventID && k.date != keepDate {
			delete(m.events, k)
			return true, nil
		}
	}
	return false, nil
}

func (m *MockEventRepository) Count(ctx context.Context) (int64, error) {
	if m.Err != nil {
		return 0, m.Err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return int64(len(m.events)), nil
}

func (m *MockEventRepository) CountByDate(ctx context.Context, date string) (int64, error) {
	if m.Err != nil {
		return 0, m.Err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	var n int64
	for k := range m.events {
		if k.date == date {
			n++
		}
	}
	return n, nil
}

func (m *MockEventRepository) CountByCategory(ctx context.Context) (map[models.Category]int64, error) {
	if m.Err != nil {
		return nil, m.Err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	counts := make(map[models.Category]int64)
	for _, e := range m.events {
		counts[e.Category.OrDefault()]++
	}
	return counts, nil
}

// MockMappingRepository implements repository.MappingRepository for testing
type MockMappingRepository struct {
	mu       sync.RWMutex
	mappings []models.Mapping

	Err error
	// InsertErr имитирует срабатывание уникального индекса при гонке
	InsertErr error
	ListCalls int
	// OnList вызывается после снимка данных в List, вне блокировки
	OnList func()
}

func NewMockMappingRepository() *MockMappingRepository {
	return &MockMappingRepository{}
}

// Put кладёт запись как есть (например, legacy без normalizedDomain)
func (m *MockMappingRepository) Put(mapping models.Mapping) primitive.ObjectID {
	m.mu.Lock()
	defer m.mu.Unlock()
	if mapping.ID.IsZero() {
		mapping.ID = primitive.NewObjectID()
	}
	m.mappings = append(m.mappings, mapping)
	return mapping.ID
}

func (m *MockMappingRepository) List(ctx context.Context) ([]models.Mapping, error) {
	if m.Err != nil {
		return nil, m.Err
	}
	m.mu.Lock()
	m.ListCalls++
	out := make([]models.Mapping, len(m.mappings))
	copy(out, m.mappings)
	hook := m.OnList
	m.mu.Unlock()

	if hook != nil {
		hook()
	}
	return out, nil
}

func (m *MockMappingRepository) FindByID(ctx context.Context, id primitive.ObjectID) (*models.Mapping, error) {
	if m.Err != nil {
		return nil, m.Err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, mp := range m.mappings {
		if mp.ID == id {
			found := mp
			return &found, nil
		}
	}
	return nil, repository.ErrMappingNotFound
}

func (m *MockMappingRepository) FindConflict(ctx context.Context, normalized, raw string, exclude *primitive.ObjectID) (*models.Mapping, error) {
	if m.Err != nil {
		return nil, m.Err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, mp := range m.mappings {
		if exclude != nil && mp.ID == *exclude {
			continue
		}
		if mp.NormalizedDomain == normalized || mp.Domain == normalized || mp.Domain == raw {
			found := mp
			return &found, nil
		}
	}
	return nil, nil
}

func (m *MockMappingRepository) Insert(ctx context.Context, mapping *models.Mapping) error {
	if m.Err != nil {
		return m.Err
	}
	if m.InsertErr != nil {
		return m.InsertErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	mapping.ID = primitive.NewObjectID()
	m.mappings = append(m.mappings, *mapping)
	return nil
}

func (m *MockMappingRepository) Update(ctx context.Context, mapping *models.Mapping) (*models.Mapping, error) {
	if m.Err != nil {
		return nil, m.Err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	for i, mp := range m.mappings {
		if mp.ID == mapping.ID {
			mapping.CreatedAt = mp.CreatedAt
			m.mappings[i] = *mapping
			updated := *mapping
			return &updated, nil
		}
	}
	return nil, repository.ErrMappingNotFound
}

func (m *MockMappingRepository) Delete(ctx context.Context, id primitive.ObjectID) error {
	if m.Err != nil {
		return m.Err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	for i, mp := range m.mappings {
		if mp.ID == id {
			m.mappings = append(m.mappings[:i], m.mappings[i+1:]...)
			return nil
		}
	}
	return repository.ErrMappingNotFound
}

func (m *MockMappingRepository) ListMissingNormalized(ctx context.Context) ([]models.Mapping, error) {
	if m.Err != nil {
		return nil, m.Err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := []models.Mapping{}
	for _, mp := range m.mappings {
		if mp.NormalizedDomain == "" {
			out = append(out, mp)
		}
	}
	return out, nil
}

func (m *MockMappingRepository) SetNormalized(ctx context.Context, id primitive.ObjectID, normalized string) error {
	if m.Err != nil {
		return m.Err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, mp := range m.mappings {
		if mp.ID != id && mp.NormalizedDomain == normalized {
			return repository.ErrDuplicateKey
		}
	}
	for i, mp := range m.mappings {
		if mp.ID == id {
			m.mappings[i].NormalizedDomain = normalized
			return nil
		}
	}
	return repository.ErrMappingNotFound
}

// MockTrafficRepository implements repository.TrafficRepository for testing
type MockTrafficRepository struct {
	mu     sync.RWMutex
	visits []models.Visit

	Err error
}

func NewMockTrafficRepository() *MockTrafficRepository {
	return &MockTrafficRepository{}
}

// AddVisit добавляет n посещений страницы без имени (pageName == url)
func (m *MockTrafficRepository) AddVisit(url string, visitedAt time.Time, n int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := 0; i < n; i++ {
		at := visitedAt
		m.visits = append(m.visits, models.Visit{URL: url, PageName: url, VisitedAt: &at})
	}
}

// AddNamedVisit добавляет посещение страницы, у которой уже есть имя
func (m *MockTrafficRepository) AddNamedVisit(url, pageName string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.visits = append(m.visits, models.Visit{URL: url, PageName: pageName})
}

func (m *MockTrafficRepository) EachUnmappedCandidate(ctx context.Context, search string, fn func(models.Visit) error) error {
	if m.Err != nil {
		return m.Err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	search = strings.ToLower(search)
	for _, v := range m.visits {
		if v.URL != v.PageName {
			continue
		}
		if search != "" && !strings.Contains(strings.ToLower(v.URL), search) {
			continue
		}
		if err := fn(v); err != nil {
			return err
		}
	}
	return nil
}

// MockUserRepository implements repository.UserRepository for testing
type MockUserRepository struct {
	mu    sync.RWMutex
	users map[string]models.User
}

func NewMockUserRepository() *MockUserRepository {
	return &MockUserRepository{users: make(map[string]models.User)}
}

func (m *MockUserRepository) FindByUsername(ctx context.Context, username string) (*models.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	u, ok := m.users[username]
	if !ok {
		return nil, repository.ErrUserNotFound
	}
	return &u, nil
}

func (m *MockUserRepository) Upsert(ctx context.Context, user *models.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if existing, ok := m.users[user.Username]; ok {
		user.ID = existing.ID
	} else if user.ID.IsZero() {
		user.ID = primitive.NewObjectID()
	}
	m.users[user.Username] = *user
	return nil
}

// MockCacheRepository implements repository.CacheRepository for testing
type MockCacheRepository struct {
	mu      sync.RWMutex
	domains []string
	warm    bool
	version int64

	Invalidations int
	StaleWrites   int
}

func NewMockCacheRepository() *MockCacheRepository {
	return &MockCacheRepository{}
}

func (m *MockCacheRepository) GetMappedDomains(ctx context.Context) ([]string, int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if !m.warm {
		return nil, m.version, repository.ErrCacheMiss
	}
	return append([]string(nil), m.domains...), m.version, nil
}

// SetMappedDomains отбрасывает запись старого поколения, как и Redis-реализация
func (m *MockCacheRepository) SetMappedDomains(ctx context.Context, version int64, domains []string, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if version != m.version {
		m.StaleWrites++
		return nil
	}
	m.domains = append([]string(nil), domains...)
	m.warm = true
	return nil
}

func (m *MockCacheRepository) InvalidateMappedDomains(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.domains = nil
	m.warm = false
	m.version++
	m.Invalidations++
	return nil
}

func (m *MockCacheRepository) Warm() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.warm
}
