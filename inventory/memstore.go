package inventory

import (
	"sync"

	"github.com/fliptrack/fliptrack/models"
)

// MemoryStore is an in-process Store used by the CLI and tests. Records
// are kept by value semantics of their pointers; callers own the
// structs they pass in and get back.
type MemoryStore struct {
	mu       sync.RWMutex
	nextID   int
	items    map[int]*models.Item
	supplies map[int]*models.Supply
	catalogs map[int]*models.Catalog
}

// NewMemoryStore returns an empty store with ids starting at 1.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		nextID:   1,
		items:    make(map[int]*models.Item),
		supplies: make(map[int]*models.Supply),
		catalogs: make(map[int]*models.Catalog),
	}
}

func (m *MemoryStore) allocID() int {
	id := m.nextID
	m.nextID++
	return id
}

// Item returns the item with the given id.
func (m *MemoryStore) Item(id int) (*models.Item, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	item, ok := m.items[id]
	if !ok {
		return nil, ErrNotFound
	}
	return item, nil
}

// Items returns every stored item in unspecified order.
func (m *MemoryStore) Items() ([]*models.Item, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*models.Item, 0, len(m.items))
	for _, item := range m.items {
		out = append(out, item)
	}
	return out, nil
}

// SaveItem inserts or updates an item, assigning an id when zero.
func (m *MemoryStore) SaveItem(item *models.Item) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if item.ID == 0 {
		item.ID = m.allocID()
	}
	m.items[item.ID] = item
	return item.ID, nil
}

// DeleteItem removes the item with the given id.
func (m *MemoryStore) DeleteItem(id int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.items[id]; !ok {
		return ErrNotFound
	}
	delete(m.items, id)
	return nil
}

// Supply returns the supply with the given id.
func (m *MemoryStore) Supply(id int) (*models.Supply, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	supply, ok := m.supplies[id]
	if !ok {
		return nil, ErrNotFound
	}
	return supply, nil
}

// Supplies returns every stored supply in unspecified order.
func (m *MemoryStore) Supplies() ([]*models.Supply, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*models.Supply, 0, len(m.supplies))
	for _, supply := range m.supplies {
		out = append(out, supply)
	}
	return out, nil
}

// SaveSupply inserts or updates a supply, assigning an id when zero.
func (m *MemoryStore) SaveSupply(supply *models.Supply) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if supply.ID == 0 {
		supply.ID = m.allocID()
	}
	m.supplies[supply.ID] = supply
	return supply.ID, nil
}

// DeleteSupply removes the supply with the given id.
func (m *MemoryStore) DeleteSupply(id int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.supplies[id]; !ok {
		return ErrNotFound
	}
	delete(m.supplies, id)
	return nil
}

// Catalog returns the catalog with the given id.
func (m *MemoryStore) Catalog(id int) (*models.Catalog, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	catalog, ok := m.catalogs[id]
	if !ok {
		return nil, ErrNotFound
	}
	return catalog, nil
}

// Catalogs returns every stored catalog in unspecified order.
func (m *MemoryStore) Catalogs() ([]*models.Catalog, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*models.Catalog, 0, len(m.catalogs))
	for _, catalog := range m.catalogs {
		out = append(out, catalog)
	}
	return out, nil
}

// SaveCatalog upserts a catalog. Catalogs carry no id field, so the
// URL is the natural key: re-saving the same URL replaces the record
// under its existing id.
func (m *MemoryStore) SaveCatalog(catalog *models.Catalog) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, existing := range m.catalogs {
		if existing.URL == catalog.URL {
			m.catalogs[id] = catalog
			return id, nil
		}
	}
	id := m.allocID()
	m.catalogs[id] = catalog
	return id, nil
}

// DeleteCatalog removes the catalog with the given id.
func (m *MemoryStore) DeleteCatalog(id int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.catalogs[id]; !ok {
		return ErrNotFound
	}
	delete(m.catalogs, id)
	return nil
}

// MapSettings is a Settings implementation backed by a plain map.
type MapSettings struct {
	mu     sync.RWMutex
	values map[string]string
}

// NewMapSettings seeds a settings lookup from the given values.
func NewMapSettings(values map[string]string) *MapSettings {
	s := &MapSettings{values: make(map[string]string, len(values))}
	for k, v := range values {
		s.values[k] = v
	}
	return s
}

// Get returns the value for key and whether it was present.
func (s *MapSettings) Get(key string) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.values[key]
	return v, ok
}

// Set stores a value under key.
func (s *MapSettings) Set(key, value string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.values[key] = value
}
