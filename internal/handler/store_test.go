package handler

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/iliyamo/shop-auth-api/internal/auth"
	"github.com/iliyamo/shop-auth-api/internal/model"
	"github.com/iliyamo/shop-auth-api/internal/repository"
)

// memStore is an in-memory IdentityStore.
type memStore struct {
	mu    sync.Mutex
	users map[string]*model.Identity
}

func newMemStore() *memStore { return &memStore{users: map[string]*model.Identity{}} }

func (s *memStore) public(u *model.Identity) *model.Identity {
	cp := *u
	cp.PasswordHash = ""
	cp.Roles = append([]string(nil), u.Roles...)
	return &cp
}

func (s *memStore) FindByID(_ context.Context, id string) (*model.Identity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if u, ok := s.users[id]; ok {
		return s.public(u), nil
	}
	return nil, repository.ErrNotFound
}

func (s *memStore) FindByEmail(_ context.Context, email string) (*model.Identity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if u.UserEmail == email {
			cp := *u
			return &cp, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (s *memStore) Create(_ context.Context, u *model.Identity) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.users {
		if existing.UserEmail == u.UserEmail {
			return repository.ErrEmailExists
		}
	}
	cp := *u
	s.users[u.UserID] = &cp
	return nil
}

func (s *memStore) UpdateRoles(_ context.Context, id string, roles []string) (*model.Identity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	u.Roles = append([]string(nil), roles...)
	u.UpdatedAt = time.Now()
	return s.public(u), nil
}

func (s *memStore) RemoveRole(_ context.Context, id, role, fallback string) (*model.Identity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	u.Roles = auth.Remove(u.Roles, role)
	if len(u.Roles) == 0 {
		u.Roles = []string{fallback}
	}
	return s.public(u), nil
}

func (s *memStore) UpdateName(_ context.Context, id, name string) (*model.Identity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	u.UserName = name
	return s.public(u), nil
}

func (s *memStore) DeleteByID(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[id]; !ok {
		return repository.ErrNotFound
	}
	delete(s.users, id)
	return nil
}

func (s *memStore) List(_ context.Context, f model.IdentityFilter) ([]model.Identity, int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []model.Identity
	for _, u := range s.users {
		if f.Role != "" && !auth.HasAny(u.Roles, f.Role) {
			continue
		}
		if q := strings.ToLower(f.Search); q != "" &&
			!strings.Contains(strings.ToLower(u.UserName), q) && !strings.Contains(u.UserEmail, q) {
			continue
		}
		out = append(out, *s.public(u))
	}
	return out, int64(len(out)), nil
}

// memProducts is an in-memory ProductStore.
type memProducts struct{ items []model.Product }

func (m *memProducts) List(_ context.Context, f model.ProductFilter) ([]model.Product, error) {
	out := []model.Product{}
	for _, p := range m.items {
		if f.Category != "" && (p.ProductDetails == nil || p.ProductDetails.ProductCategory != f.Category) {
			continue
		}
		if f.MinAvailability != nil && (p.ProductDetails == nil || p.ProductDetails.ProductAvailability < *f.MinAvailability) {
			continue
		}
		out = append(out, p)
	}
	return out, nil
}

func (m *memProducts) FindByID(_ context.Context, id string) (*model.Product, error) {
	for i := range m.items {
		if m.items[i].ProductID == id {
			return &m.items[i], nil
		}
	}
	return nil, repository.ErrNotFound
}
