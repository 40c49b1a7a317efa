package memory

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"time"

	"agrokoperasi/backend/internal/domain"
	"agrokoperasi/backend/internal/store"
	"agrokoperasi/backend/internal/xid"
)

func (s *Store) CreateUser(_ context.Context, user domain.User) (*domain.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	user.Username = strings.ToLower(strings.TrimSpace(user.Username))
	if user.Username == "" || user.PasswordHash == "" {
		return nil, fmt.Errorf("%w: username and password are required", store.ErrValidation)
	}
	if _, exists := s.userByUsernameLocked(user.Username); exists {
		return nil, fmt.Errorf("%w: username already taken", store.ErrValidation)
	}
	if user.ID == "" {
		user.ID = xid.New("usr")
	}
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now().UTC()
	}
	s.usersByID[user.ID] = user
	created := user
	return &created, nil
}

func (s *Store) GetUserByID(_ context.Context, id string) (*domain.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	user, ok := s.usersByID[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &user, nil
}

func (s *Store) GetUserByUsername(_ context.Context, username string) (*domain.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	user, ok := s.userByUsernameLocked(strings.ToLower(strings.TrimSpace(username)))
	if !ok {
		return nil, store.ErrNotFound
	}
	return &user, nil
}

func (s *Store) userByUsernameLocked(username string) (domain.User, bool) {
	for _, user := range s.usersByID {
		if user.Username == username {
			return user, true
		}
	}
	return domain.User{}, false
}

func (s *Store) ListUsers(_ context.Context) ([]domain.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	users := make([]domain.User, 0, len(s.usersByID))
	for _, user := range s.usersByID {
		users = append(users, user)
	}
	slices.SortFunc(users, func(a, b domain.User) int {
		return cmpString(a.Username, b.Username)
	})
	return users, nil
}

func (s *Store) UpdateUser(_ context.Context, user domain.User) (*domain.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.usersByID[user.ID]
	if !ok {
		return nil, store.ErrNotFound
	}
	user.Username = existing.Username
	user.CreatedAt = existing.CreatedAt
	if user.PasswordHash == "" {
		user.PasswordHash = existing.PasswordHash
	}
	s.usersByID[user.ID] = user
	updated := user
	return &updated, nil
}

func (s *Store) ListModulePermissions(_ context.Context, userID string) ([]domain.ModulePermission, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if _, ok := s.usersByID[userID]; !ok {
		return nil, store.ErrNotFound
	}
	return permissionList(s.permissions[userID]), nil
}

func (s *Store) SetModulePermissions(_ context.Context, userID string, perms []domain.ModulePermission) ([]domain.ModulePermission, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.usersByID[userID]; !ok {
		return nil, store.ErrNotFound
	}
	next := make(map[string]bool, len(perms))
	for _, perm := range perms {
		next[perm.Module] = perm.Allowed
	}
	s.permissions[userID] = next
	return permissionList(next), nil
}

func permissionList(rows map[string]bool) []domain.ModulePermission {
	out := make([]domain.ModulePermission, 0, len(rows))
	for module, allowed := range rows {
		out = append(out, domain.ModulePermission{Module: module, Allowed: allowed})
	}
	slices.SortFunc(out, func(a, b domain.ModulePermission) int {
		return cmpString(a.Module, b.Module)
	})
	return out
}

func (s *Store) CreateAuditLog(_ context.Context, entry domain.AuditLog) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if entry.ID == "" {
		entry.ID = xid.New("aud")
	}
	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now().UTC()
	}
	s.auditLogs = append(s.auditLogs, entry)
	return nil
}

func (s *Store) ListAuditLogs(_ context.Context, limit int) ([]domain.AuditLog, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if limit < 1 {
		limit = 100
	}
	out := make([]domain.AuditLog, 0, min(limit, len(s.auditLogs)))
	for i := len(s.auditLogs) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, s.auditLogs[i])
	}
	return out, nil
}
