package repository

import (
	"context"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/joseph-ayodele/routecards/internal/common"
	"github.com/joseph-ayodele/routecards/internal/entity"
)

// memoryRouteCardRepository keeps the ledger in process memory with the same
// uniqueness rule as the SQL store. Used by tests and dry runs.
type memoryRouteCardRepository struct {
	mu     sync.Mutex
	cards  map[string]*entity.RouteCard
	nextID int
	now    func() time.Time
}

func NewMemoryRouteCardRepository() RouteCardRepository {
	return &memoryRouteCardRepository{
		cards:  make(map[string]*entity.RouteCard),
		nextID: 1,
		now:    time.Now,
	}
}

func (m *memoryRouteCardRepository) Exists(_ context.Context, formNumber string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.cards[formNumber]
	return ok, nil
}

func (m *memoryRouteCardRepository) FindExisting(_ context.Context, formNumbers []string) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var found []string
	for _, n := range formNumbers {
		if _, ok := m.cards[n]; ok {
			found = append(found, n)
		}
	}
	slices.Sort(found)
	return slices.Compact(found), nil
}

func (m *memoryRouteCardRepository) Append(_ context.Context, card *entity.RouteCard) (*entity.RouteCard, error) {
	rec, err := normalizeCard(card, m.now)
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.cards[rec.FormNumber]; ok {
		return nil, common.NewAppError(common.CodeDuplicateKey, "form number "+rec.FormNumber+" is already recorded", common.ErrDuplicateKey)
	}
	rec.ID = m.nextID
	m.nextID++
	m.cards[rec.FormNumber] = rec

	out := *rec
	return &out, nil
}

func (m *memoryRouteCardRepository) Get(_ context.Context, formNumber string) (*entity.RouteCard, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	card, ok := m.cards[formNumber]
	if !ok {
		return nil, common.NewAppError(common.CodeNotFound, "form number "+formNumber, common.ErrNotFound)
	}
	out := *card
	return &out, nil
}

func (m *memoryRouteCardRepository) List(_ context.Context, filter ListFilter) ([]*entity.RouteCard, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var result []*entity.RouteCard
	for _, card := range m.cards {
		if filter.CreatedFrom != nil && card.CreatedAt.Before(*filter.CreatedFrom) {
			continue
		}
		if filter.CreatedTo != nil && card.CreatedAt.After(*filter.CreatedTo) {
			continue
		}
		out := *card
		result = append(result, &out)
	}
	slices.SortFunc(result, func(a, b *entity.RouteCard) int {
		return strings.Compare(a.FormNumber, b.FormNumber)
	})
	return result, nil
}

func (m *memoryRouteCardRepository) Count(context.Context) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.cards), nil
}
