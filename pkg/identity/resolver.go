// Package identity answers "who is the current user" for the session
// synchronizer. Absence of a user is not an error; it selects the
// local-only persistence path.
package identity

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// User is an authenticated identity.
type User struct {
	ID    string `json:"id"`
	Email string `json:"email,omitempty"`
}

// Resolver reports the currently authenticated user, or nil when the
// client is anonymous.
type Resolver interface {
	CurrentUser(ctx context.Context) (*User, error)
}

// FileResolver reads the persisted profile on every call, so a login or
// logout in another process is picked up without restart.
type FileResolver struct {
	path string
}

// NewFileResolver creates a resolver backed by a profile file.
func NewFileResolver(dataDir string) *FileResolver {
	return &FileResolver{path: filepath.Join(dataDir, "profile.json")}
}

// CurrentUser returns the stored user. A missing or unreadable profile
// means no user; it is never an error.
func (r *FileResolver) CurrentUser(ctx context.Context) (*User, error) {
	data, err := os.ReadFile(r.path)
	if err != nil {
		return nil, nil
	}

	var u User
	if err := json.Unmarshal(data, &u); err != nil {
		return nil, nil
	}
	if u.ID == "" {
		return nil, nil
	}
	return &u, nil
}

// Save persists the profile with restricted permissions.
func (r *FileResolver) Save(u User) error {
	if u.ID == "" {
		return fmt.Errorf("user id cannot be empty")
	}

	if err := os.MkdirAll(filepath.Dir(r.path), 0700); err != nil {
		return fmt.Errorf("failed to create profile directory: %w", err)
	}

	data, err := json.Marshal(u)
	if err != nil {
		return fmt.Errorf("failed to marshal profile: %w", err)
	}

	tempPath := r.path + ".tmp"
	if err := os.WriteFile(tempPath, data, 0600); err != nil {
		return fmt.Errorf("failed to write profile: %w", err)
	}
	if err := os.Rename(tempPath, r.path); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("failed to replace profile: %w", err)
	}

	return nil
}

// Clear removes the stored profile, returning the client to anonymous
// operation.
func (r *FileResolver) Clear() error {
	if err := os.Remove(r.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove profile: %w", err)
	}
	return nil
}

// Static is a fixed-identity resolver, useful for tests and for wiring
// components that already know their user.
type Static struct {
	User *User
}

// CurrentUser returns the configured user.
func (s Static) CurrentUser(ctx context.Context) (*User, error) {
	return s.User, nil
}
