package postgres

import (
	"context"
	"fmt"
	"strings"
	"time"

	"agrokoperasi/backend/internal/domain"
	"agrokoperasi/backend/internal/store"
	"agrokoperasi/backend/internal/xid"
)

const userColumns = `id, username, name, password_hash, role, branch, position, active, created_at`

func scanUser(row rowScanner) (domain.User, error) {
	var u domain.User
	err := row.Scan(&u.ID, &u.Username, &u.Name, &u.PasswordHash, &u.Role, &u.Branch, &u.Position, &u.Active, &u.CreatedAt)
	return u, err
}

func (s *Store) CreateUser(ctx context.Context, user domain.User) (*domain.User, error) {
	user.Username = strings.ToLower(strings.TrimSpace(user.Username))
	if user.Username == "" || user.PasswordHash == "" {
		return nil, fmt.Errorf("%w: username and password are required", store.ErrValidation)
	}
	if user.ID == "" {
		user.ID = xid.New("usr")
	}
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO users (id, username, name, password_hash, role, branch, position, active, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
	`, user.ID, user.Username, user.Name, user.PasswordHash, user.Role, user.Branch, user.Position, user.Active, user.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, fmt.Errorf("%w: username already taken", store.ErrValidation)
		}
		return nil, err
	}
	return &user, nil
}

func (s *Store) GetUserByID(ctx context.Context, id string) (*domain.User, error) {
	u, err := scanUser(s.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id))
	if err != nil {
		return nil, notFound(err)
	}
	return &u, nil
}

func (s *Store) GetUserByUsername(ctx context.Context, username string) (*domain.User, error) {
	u, err := scanUser(s.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE username = $1`,
		strings.ToLower(strings.TrimSpace(username))))
	if err != nil {
		return nil, notFound(err)
	}
	return &u, nil
}

func (s *Store) ListUsers(ctx context.Context) ([]domain.User, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+userColumns+` FROM users ORDER BY username`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	users := make([]domain.User, 0, 32)
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return users, nil
}

func (s *Store) UpdateUser(ctx context.Context, user domain.User) (*domain.User, error) {
	u, err := scanUser(s.db.QueryRowContext(ctx, `
		UPDATE users
		SET name = $2, role = $3, branch = $4, position = $5, active = $6,
			password_hash = COALESCE(NULLIF($7, ''), password_hash)
		WHERE id = $1
		RETURNING `+userColumns,
		user.ID, user.Name, user.Role, user.Branch, user.Position, user.Active, user.PasswordHash))
	if err != nil {
		return nil, notFound(err)
	}
	return &u, nil
}

func (s *Store) ListModulePermissions(ctx context.Context, userID string) ([]domain.ModulePermission, error) {
	exists, err := rowExists(ctx, s.db, `SELECT EXISTS (SELECT 1 FROM users WHERE id = $1)`, userID)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, store.ErrNotFound
	}
	return listPermissions(ctx, s.db, userID)
}

func listPermissions(ctx context.Context, q queryer, userID string) ([]domain.ModulePermission, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT module, allowed FROM module_permissions WHERE user_id = $1 ORDER BY module
	`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	perms := make([]domain.ModulePermission, 0, len(domain.Modules))
	for rows.Next() {
		var p domain.ModulePermission
		if err := rows.Scan(&p.Module, &p.Allowed); err != nil {
			return nil, err
		}
		perms = append(perms, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return perms, nil
}

func (s *Store) SetModulePermissions(ctx context.Context, userID string, perms []domain.ModulePermission) ([]domain.ModulePermission, error) {
	pgTx, err := s.begin(ctx)
	if err != nil {
		return nil, err
	}
	defer func() { _ = pgTx.Rollback() }()

	exists, err := rowExists(ctx, pgTx, `SELECT EXISTS (SELECT 1 FROM users WHERE id = $1)`, userID)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, store.ErrNotFound
	}
	if _, err := pgTx.ExecContext(ctx, `DELETE FROM module_permissions WHERE user_id = $1`, userID); err != nil {
		return nil, err
	}
	for _, p := range perms {
		if _, err := pgTx.ExecContext(ctx, `
			INSERT INTO module_permissions (user_id, module, allowed)
			VALUES ($1,$2,$3)
			ON CONFLICT (user_id, module) DO UPDATE SET allowed = EXCLUDED.allowed
		`, userID, p.Module, p.Allowed); err != nil {
			return nil, err
		}
	}
	saved, err := listPermissions(ctx, pgTx, userID)
	if err != nil {
		return nil, err
	}
	if err := pgTx.Commit(); err != nil {
		return nil, err
	}
	return saved, nil
}

func (s *Store) CreateAuditLog(ctx context.Context, entry domain.AuditLog) error {
	if entry.ID == "" {
		entry.ID = xid.New("aud")
	}
	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO audit_logs (id, actor_id, actor_username, actor_role, action, entity, entity_id, old_value, new_value, details, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
	`, entry.ID, entry.ActorID, entry.ActorUsername, entry.ActorRole, entry.Action, entry.Entity, entry.EntityID,
		jsonOrNil(entry.OldValue), jsonOrNil(entry.NewValue), entry.Details, entry.Timestamp)
	return err
}

func (s *Store) ListAuditLogs(ctx context.Context, limit int) ([]domain.AuditLog, error) {
	if limit < 1 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, actor_id, actor_username, actor_role, action, entity, entity_id, old_value, new_value, details, created_at
		FROM audit_logs
		ORDER BY created_at DESC, id DESC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	logs := make([]domain.AuditLog, 0, limit)
	for rows.Next() {
		var entry domain.AuditLog
		var oldValue, newValue []byte
		if err := rows.Scan(&entry.ID, &entry.ActorID, &entry.ActorUsername, &entry.ActorRole, &entry.Action,
			&entry.Entity, &entry.EntityID, &oldValue, &newValue, &entry.Details, &entry.Timestamp); err != nil {
			return nil, err
		}
		entry.OldValue = oldValue
		entry.NewValue = newValue
		logs = append(logs, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return logs, nil
}

func jsonOrNil(raw []byte) any {
	if len(raw) == 0 {
		return nil
	}
	return string(raw)
}
