package service

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"agrokoperasi/backend/internal/domain"
	"agrokoperasi/backend/internal/store"
)

const minPasswordLength = 6

// Authenticate verifies a username and password. A bare username is retried
// under the configured login domain. Inactive accounts may only sign in when
// they hold an administrative role.
func (s *Service) Authenticate(ctx context.Context, username string, password string) (*domain.User, error) {
	username = strings.ToLower(strings.TrimSpace(username))
	if username == "" || strings.TrimSpace(password) == "" {
		return nil, ErrInvalidCredentials
	}

	user, err := s.lookupUser(ctx, username)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, err
	}
	if !verifyPassword(user.PasswordHash, password) {
		return nil, ErrInvalidCredentials
	}
	if !user.Active && !hasRole(user.Role, domain.RoleSuperAdmin, domain.RoleAdmin) {
		return nil, fmt.Errorf("%w: account is inactive", ErrAccessDenied)
	}

	actor := domain.Actor{UserID: user.ID, Username: user.Username, Role: user.Role}
	s.record(WithActor(ctx, actor), domain.ActionLogin, "AUTH", user.ID, nil, nil, "login")
	return user, nil
}

func (s *Service) lookupUser(ctx context.Context, username string) (*domain.User, error) {
	user, err := s.repo.GetUserByUsername(ctx, username)
	if errors.Is(err, store.ErrNotFound) && !strings.Contains(username, "@") && s.loginDomain != "" {
		return s.repo.GetUserByUsername(ctx, username+"@"+s.loginDomain)
	}
	return user, err
}

func (s *Service) Me(ctx context.Context) (*domain.User, error) {
	actor, err := s.actor(ctx)
	if err != nil {
		return nil, err
	}
	return s.repo.GetUserByID(ctx, actor.UserID)
}

func (s *Service) ResetPassword(ctx context.Context, req domain.PasswordResetRequest) error {
	if len(req.NewPassword) < minPasswordLength {
		return fmt.Errorf("%w: password must be at least %d characters", store.ErrValidation, minPasswordLength)
	}
	user, err := s.lookupUser(ctx, strings.ToLower(strings.TrimSpace(req.Username)))
	if err != nil {
		return err
	}
	hash, err := hashPassword(req.NewPassword)
	if err != nil {
		return err
	}
	user.PasswordHash = hash
	if _, err := s.repo.UpdateUser(ctx, *user); err != nil {
		return err
	}
	s.record(ctx, domain.ActionUpdate, "USER", user.ID, nil, nil, "password reset")
	return nil
}

func (s *Service) ListUsers(ctx context.Context) ([]domain.User, error) {
	return s.repo.ListUsers(ctx)
}

func (s *Service) CreateUser(ctx context.Context, req domain.UserCreateRequest) (*domain.User, error) {
	actor, err := s.actor(ctx)
	if err != nil {
		return nil, err
	}

	username := strings.ToLower(strings.TrimSpace(req.Username))
	name := strings.TrimSpace(req.Name)
	role := defaultString(strings.ToUpper(req.Role), domain.RoleUser)
	if username == "" || name == "" {
		return nil, fmt.Errorf("%w: username and name are required", store.ErrValidation)
	}
	if strings.ContainsAny(username, " \t\r\n") {
		return nil, fmt.Errorf("%w: username must not contain spaces", store.ErrValidation)
	}
	if len(req.Password) < minPasswordLength {
		return nil, fmt.Errorf("%w: password must be at least %d characters", store.ErrValidation, minPasswordLength)
	}
	if !slices.Contains(domain.Roles, role) {
		return nil, fmt.Errorf("%w: unknown role %s", store.ErrValidation, role)
	}
	if role == domain.RoleSuperAdmin && actor.Role != domain.RoleSuperAdmin {
		return nil, fmt.Errorf("%w: only a super admin can create a super admin", ErrAccessDenied)
	}

	hash, err := hashPassword(req.Password)
	if err != nil {
		return nil, err
	}
	created, err := s.repo.CreateUser(ctx, domain.User{
		Username:     username,
		Name:         name,
		PasswordHash: hash,
		Role:         role,
		Branch:       strings.TrimSpace(req.Branch),
		Position:     strings.TrimSpace(req.Position),
		Active:       true,
		CreatedAt:    s.now(),
	})
	if err != nil {
		return nil, err
	}

	s.record(ctx, domain.ActionCreate, "USER", created.ID, nil, created, "")
	return created, nil
}

func (s *Service) UpdateUser(ctx context.Context, id string, req domain.UserUpdateRequest) (*domain.User, error) {
	actor, err := s.actor(ctx)
	if err != nil {
		return nil, err
	}
	existing, err := s.repo.GetUserByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if existing.Role == domain.RoleSuperAdmin && actor.Role != domain.RoleSuperAdmin {
		return nil, fmt.Errorf("%w: only a super admin can modify a super admin", ErrAccessDenied)
	}

	updated := *existing
	updated.PasswordHash = ""
	if req.Name != nil {
		name := strings.TrimSpace(*req.Name)
		if name == "" {
			return nil, fmt.Errorf("%w: name must not be blank", store.ErrValidation)
		}
		updated.Name = name
	}
	if req.Role != nil {
		role := strings.ToUpper(strings.TrimSpace(*req.Role))
		if !slices.Contains(domain.Roles, role) {
			return nil, fmt.Errorf("%w: unknown role %s", store.ErrValidation, role)
		}
		if role == domain.RoleSuperAdmin && actor.Role != domain.RoleSuperAdmin {
			return nil, fmt.Errorf("%w: only a super admin can grant super admin", ErrAccessDenied)
		}
		updated.Role = role
	}
	if req.Branch != nil {
		updated.Branch = strings.TrimSpace(*req.Branch)
	}
	if req.Position != nil {
		updated.Position = strings.TrimSpace(*req.Position)
	}
	if req.Active != nil {
		updated.Active = *req.Active
	}
	if req.Password != nil {
		if len(*req.Password) < minPasswordLength {
			return nil, fmt.Errorf("%w: password must be at least %d characters", store.ErrValidation, minPasswordLength)
		}
		hash, err := hashPassword(*req.Password)
		if err != nil {
			return nil, err
		}
		updated.PasswordHash = hash
	}

	saved, err := s.repo.UpdateUser(ctx, updated)
	if err != nil {
		return nil, err
	}
	s.record(ctx, domain.ActionUpdate, "USER", saved.ID, existing, saved, "")
	return saved, nil
}

// EnsureUser creates the account when the username is free. It is used to
// bootstrap the first administrator on an empty database.
func (s *Service) EnsureUser(ctx context.Context, username string, password string, role string) error {
	username = strings.ToLower(strings.TrimSpace(username))
	if _, err := s.repo.GetUserByUsername(ctx, username); err == nil {
		return nil
	} else if !errors.Is(err, store.ErrNotFound) {
		return err
	}
	hash, err := hashPassword(password)
	if err != nil {
		return err
	}
	_, err = s.repo.CreateUser(ctx, domain.User{
		Username:     username,
		Name:         username,
		PasswordHash: hash,
		Role:         role,
		Active:       true,
		CreatedAt:    s.now(),
	})
	if err != nil {
		return err
	}
	s.log.Info("bootstrap user created", zap.String("username", username), zap.String("role", role))
	return nil
}

// Permissions lists every module with its effective flag. Modules without an
// explicit row are allowed.
func (s *Service) Permissions(ctx context.Context, userID string) ([]domain.ModulePermission, error) {
	explicit, err := s.repo.ListModulePermissions(ctx, userID)
	if err != nil {
		return nil, err
	}
	denied := make(map[string]bool, len(explicit))
	for _, p := range explicit {
		denied[p.Module] = !p.Allowed
	}
	out := make([]domain.ModulePermission, 0, len(domain.Modules))
	for _, module := range domain.Modules {
		out = append(out, domain.ModulePermission{Module: module, Allowed: !denied[module]})
	}
	return out, nil
}

func (s *Service) MyPermissions(ctx context.Context) ([]domain.ModulePermission, error) {
	actor, err := s.actor(ctx)
	if err != nil {
		return nil, err
	}
	return s.Permissions(ctx, actor.UserID)
}

// SetPermissions replaces the explicit rows for a user. Unknown modules are
// dropped; a repeated module keeps its last flag.
func (s *Service) SetPermissions(ctx context.Context, userID string, req domain.PermissionUpdateRequest) ([]domain.ModulePermission, error) {
	before, err := s.repo.ListModulePermissions(ctx, userID)
	if err != nil {
		return nil, err
	}

	flags := make(map[string]bool, len(req.Modules))
	for _, p := range req.Modules {
		module := strings.ToUpper(strings.TrimSpace(p.Module))
		if !slices.Contains(domain.Modules, module) {
			continue
		}
		flags[module] = p.Allowed
	}
	perms := make([]domain.ModulePermission, 0, len(flags))
	for _, module := range domain.Modules {
		if allowed, ok := flags[module]; ok {
			perms = append(perms, domain.ModulePermission{Module: module, Allowed: allowed})
		}
	}

	saved, err := s.repo.SetModulePermissions(ctx, userID, perms)
	if err != nil {
		return nil, err
	}
	s.record(ctx, domain.ActionUpdate, "MODULE_PERMISSION", userID, before, saved, "")
	return s.Permissions(ctx, userID)
}

// ModuleAllowed reports whether the user may use at least one of the modules.
// Access is denied only when every listed module is explicitly disabled.
func (s *Service) ModuleAllowed(ctx context.Context, userID string, modules ...string) (bool, error) {
	explicit, err := s.repo.ListModulePermissions(ctx, userID)
	if err != nil {
		return false, err
	}
	denied := make(map[string]bool, len(explicit))
	for _, p := range explicit {
		if !p.Allowed {
			denied[p.Module] = true
		}
	}
	for _, module := range modules {
		if !denied[module] {
			return true, nil
		}
	}
	return len(modules) == 0, nil
}

func verifyPassword(stored string, input string) bool {
	if stored == "" || strings.TrimSpace(input) == "" || !isPasswordHash(stored) {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(stored), []byte(input)) == nil
}

func hashPassword(password string) (string, error) {
	bytes, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(bytes), nil
}

func isPasswordHash(value string) bool {
	return strings.HasPrefix(value, "$2a$") || strings.HasPrefix(value, "$2b$") || strings.HasPrefix(value, "$2y$")
}
