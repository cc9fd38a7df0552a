package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"maps"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"go-auth-session/internal/model"
)

// FileUserDirectory serves users from a JSON array on disk, loaded once at startup.
type FileUserDirectory struct {
	path    string
	mu      sync.RWMutex
	byEmail map[string]model.User
	byID    map[string]model.User
}

func NewFileUserDirectory(path string) (*FileUserDirectory, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("users file path is required")
	}

	d := &FileUserDirectory{
		path:    path,
		byEmail: map[string]model.User{},
		byID:    map[string]model.User{},
	}
	if err := d.Reload(); err != nil {
		return nil, err
	}
	return d, nil
}

// Reload re-reads the file. A missing or empty file yields an empty directory.
func (d *FileUserDirectory) Reload() error {
	data, err := os.ReadFile(d.path)
	if errors.Is(err, os.ErrNotExist) {
		data = nil
	} else if err != nil {
		return fmt.Errorf("read users file: %w", err)
	}

	var users []model.User
	if len(strings.TrimSpace(string(data))) > 0 {
		if err := json.Unmarshal(data, &users); err != nil {
			return fmt.Errorf("decode users file: %w", err)
		}
	}

	byEmail := make(map[string]model.User, len(users))
	byID := make(map[string]model.User, len(users))
	for i, u := range users {
		if u.ID == "" || strings.TrimSpace(u.Email) == "" {
			return fmt.Errorf("users file entry %d is missing id or email", i)
		}
		if u.Status == "" {
			u.Status = model.UserStatusActive
		}
		byEmail[model.NormalizeEmail(u.Email)] = u
		byID[u.ID] = u
	}

	d.mu.Lock()
	d.byEmail = byEmail
	d.byID = byID
	d.mu.Unlock()

	return nil
}

func (d *FileUserDirectory) FindByEmail(ctx context.Context, email string) (model.User, error) {
	if err := ctx.Err(); err != nil {
		return model.User{}, err
	}

	d.mu.RLock()
	defer d.mu.RUnlock()

	u, ok := d.byEmail[model.NormalizeEmail(email)]
	if !ok {
		return model.User{}, model.ErrUserNotFound
	}
	return u, nil
}

func (d *FileUserDirectory) FindByID(ctx context.Context, id string) (model.User, error) {
	if err := ctx.Err(); err != nil {
		return model.User{}, err
	}

	d.mu.RLock()
	defer d.mu.RUnlock()

	u, ok := d.byID[id]
	if !ok {
		return model.User{}, model.ErrUserNotFound
	}
	return u, nil
}

func (d *FileUserDirectory) Count(ctx context.Context) (int, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.byID), nil
}

// List returns every user ordered by email.
func (d *FileUserDirectory) List(ctx context.Context) ([]model.User, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	d.mu.RLock()
	users := make([]model.User, 0, len(d.byID))
	for _, u := range d.byID {
		users = append(users, u)
	}
	d.mu.RUnlock()

	sort.Slice(users, func(i, j int) bool { return users[i].Email < users[j].Email })
	return users, nil
}

func (d *FileUserDirectory) SetStatus(ctx context.Context, id string, status model.UserStatus) (model.User, error) {
	if err := ctx.Err(); err != nil {
		return model.User{}, err
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	u, ok := d.byID[id]
	if !ok {
		return model.User{}, model.ErrUserNotFound
	}
	u.Status = status
	u.UpdatedAt = time.Now().UTC()

	if err := d.commitLocked(u); err != nil {
		return model.User{}, err
	}
	return u, nil
}

// Create appends u and rewrites the file.
func (d *FileUserDirectory) Create(ctx context.Context, u model.User) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	key := model.NormalizeEmail(u.Email)
	if _, exists := d.byEmail[key]; exists {
		return fmt.Errorf("user %s already exists", key)
	}
	if _, exists := d.byID[u.ID]; exists {
		return fmt.Errorf("user id %s already exists", u.ID)
	}
	u.Email = key

	return d.commitLocked(u)
}

// commitLocked writes the directory with u applied and only then updates the in-memory
// indexes, so a failed write leaves the directory unchanged.
func (d *FileUserDirectory) commitLocked(u model.User) error {
	byID := maps.Clone(d.byID)
	byID[u.ID] = u
	if err := writeUsersFile(d.path, byID); err != nil {
		return fmt.Errorf("save users file: %w", err)
	}

	byEmail := maps.Clone(d.byEmail)
	byEmail[model.NormalizeEmail(u.Email)] = u
	d.byID = byID
	d.byEmail = byEmail
	return nil
}

func writeUsersFile(path string, byID map[string]model.User) error {
	users := make([]model.User, 0, len(byID))
	for _, u := range byID {
		users = append(users, u)
	}
	sort.Slice(users, func(i, j int) bool { return users[i].ID < users[j].ID })

	data, err := json.MarshalIndent(users, "", "  ")
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o600)
}
