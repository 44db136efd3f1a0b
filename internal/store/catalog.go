package store

import (
	_ "embed"
	"errors"
	"fmt"
	"os"

	"github.com/punchamoorthee/voucherfront/internal/domain"
	"gopkg.in/yaml.v3"
)

//go:embed catalog.yaml
var defaultCatalog []byte

var ErrEmptyCatalog = errors.New("catalog has no vouchers")

// CatalogStore is the read-only voucher catalog. It is built once and never
// mutated, so concurrent reads need no locking.
type CatalogStore struct {
	byID  map[string]domain.Voucher
	order []string
}

type catalogFile struct {
	Vouchers []domain.Voucher `yaml:"vouchers"`
}

// Default returns the catalog compiled into the binary.
func Default() *CatalogStore {
	s, err := Load(defaultCatalog)
	if err != nil {
		panic(fmt.Sprintf("embedded catalog is invalid: %v", err))
	}
	return s
}

// LoadFile reads a catalog definition from disk.
func LoadFile(path string) (*CatalogStore, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog file: %w", err)
	}
	return Load(data)
}

// Load parses a YAML catalog definition.
func Load(data []byte) (*CatalogStore, error) {
	var f catalogFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse catalog: %w", err)
	}
	if len(f.Vouchers) == 0 {
		return nil, ErrEmptyCatalog
	}

	s := &CatalogStore{
		byID:  make(map[string]domain.Voucher, len(f.Vouchers)),
		order: make([]string, 0, len(f.Vouchers)),
	}
	for i, v := range f.Vouchers {
		if v.ID == "" {
			return nil, fmt.Errorf("voucher %d: id is required", i)
		}
		if _, dup := s.byID[v.ID]; dup {
			return nil, fmt.Errorf("voucher %q: duplicate id", v.ID)
		}
		if v.Title == "" {
			return nil, fmt.Errorf("voucher %q: title is required", v.ID)
		}
		if v.Amount <= 0 {
			return nil, fmt.Errorf("voucher %q: amount must be positive", v.ID)
		}
		s.byID[v.ID] = v
		s.order = append(s.order, v.ID)
	}
	return s, nil
}

// Lookup retrieves a single voucher by ID.
func (s *CatalogStore) Lookup(id string) (domain.Voucher, bool) {
	v, ok := s.byID[id]
	return v, ok
}

// List returns the vouchers in catalog order. The slice is a copy.
func (s *CatalogStore) List() []domain.Voucher {
	out := make([]domain.Voucher, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, s.byID[id])
	}
	return out
}

// Len reports the number of vouchers.
func (s *CatalogStore) Len() int {
	return len(s.order)
}
