package repository

import (
	"context"
	"sync"
	"time"

	"store-monitor/internal/models"
)

// MemoryStoreRepository keeps store data in process memory. It backs offline report
// generation and tests.
type MemoryStoreRepository struct {
	mu           sync.RWMutex
	observations []models.Observation
	rules        []models.BusinessHourRule
	timezones    map[string]models.StoreTimezone
	now          func() time.Time
}

// NewMemoryStoreRepository creates an empty in-memory repository
func NewMemoryStoreRepository() *MemoryStoreRepository {
	return &MemoryStoreRepository{
		timezones: make(map[string]models.StoreTimezone),
		now:       time.Now,
	}
}

func (m *MemoryStoreRepository) CreateObservationsBatch(_ context.Context, observations []*models.Observation) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, o := range observations {
		m.observations = append(m.observations, *o)
	}
	return nil
}

func (m *MemoryStoreRepository) CreateBusinessHoursBatch(_ context.Context, rules []*models.BusinessHourRule) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range rules {
		m.rules = append(m.rules, *r)
	}
	return nil
}

func (m *MemoryStoreRepository) UpsertTimezonesBatch(_ context.Context, timezones []*models.StoreTimezone) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, tz := range timezones {
		m.timezones[tz.StoreID] = *tz
	}
	return nil
}

func (m *MemoryStoreRepository) TruncateAll(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.observations = nil
	m.rules = nil
	m.timezones = make(map[string]models.StoreTimezone)
	return nil
}

// LoadSnapshot copies the current contents into an immutable dataset
func (m *MemoryStoreRepository) LoadSnapshot(ctx context.Context) (*models.Dataset, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	observations := make([]models.Observation, len(m.observations))
	copy(observations, m.observations)
	rules := make([]models.BusinessHourRule, len(m.rules))
	copy(rules, m.rules)
	timezones := make([]models.StoreTimezone, 0, len(m.timezones))
	for _, tz := range m.timezones {
		timezones = append(timezones, tz)
	}

	return models.NewDataset(observations, rules, timezones, m.now().UTC()), nil
}

func (m *MemoryStoreRepository) HealthCheck(_ context.Context) error {
	return nil
}
