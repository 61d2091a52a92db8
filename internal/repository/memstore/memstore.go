// Package memstore is a thread-safe in-memory implementation of the
// repositories. It returns the same sentinel errors as the Postgres-backed
// repositories and is used by service and handler tests.
package memstore

import (
	"sync"
	"time"

	"github.com/bartime/bartime-api/internal/domain"
)

type Store struct {
	mu sync.RWMutex

	associations map[uint]domain.Association
	members      map[uint]domain.Member
	emailIndex   map[string]uint
	badges       map[uint]domain.Badge
	accounts     map[uint]domain.BadgeAccount
	transactions map[uint][]domain.Transaction
	categories   map[uint]domain.Category
	products     map[uint]domain.Product

	nextID uint
	nextTx uint64

	now func() time.Time
}

func New() *Store {
	return &Store{
		associations: make(map[uint]domain.Association),
		members:      make(map[uint]domain.Member),
		emailIndex:   make(map[string]uint),
		badges:       make(map[uint]domain.Badge),
		accounts:     make(map[uint]domain.BadgeAccount),
		transactions: make(map[uint][]domain.Transaction),
		categories:   make(map[uint]domain.Category),
		products:     make(map[uint]domain.Product),
		now:          func() time.Time { return time.Now().UTC() },
	}
}

func (s *Store) Members() *MemberStore {
	return &MemberStore{s: s}
}

func (s *Store) Badges() *BadgeStore {
	return &BadgeStore{s: s}
}

func (s *Store) Ledger() *LedgerStore {
	return &LedgerStore{s: s}
}

func (s *Store) Catalog() *CatalogStore {
	return &CatalogStore{s: s}
}

// id must be called with mu held for writing.
func (s *Store) id() uint {
	s.nextID++
	return s.nextID
}
