package store

import (
	"fmt"
	"log/slog"

	"github.com/rturner/choreboard/internal/auth"
	"github.com/rturner/choreboard/internal/permission"
)

const (
	bootstrapAdminName  = "Admin"
	bootstrapViewerName = "Viewer"

	defaultAdminPIN = "0000"
)

// Bootstrap guarantees the instance is never locked out: if no enabled
// admin account exists, the well-known Admin account is created (or
// repaired) with the given password and the default PIN. A credential-less
// Viewer account is created on first run for shared displays.
func Bootstrap(users *UserStore, logger *slog.Logger, adminPassword string) error {
	if adminPassword == "" {
		adminPassword = "admin"
	}

	all, err := users.List()
	if err != nil {
		return fmt.Errorf("list users: %w", err)
	}

	hasAdmin := false
	for _, u := range all {
		if !u.Disabled && permission.Has(u.Permissions, permission.Admin) {
			hasAdmin = true
			break
		}
	}

	if !hasAdmin {
		if err := ensureAdmin(users, logger, adminPassword); err != nil {
			return err
		}
	}

	viewer, err := users.GetByUsername(bootstrapViewerName)
	if err != nil {
		return fmt.Errorf("get viewer: %w", err)
	}
	if viewer == nil {
		if _, err := users.Create(bootstrapViewerName, "", "", []string{string(permission.View)}); err != nil {
			return fmt.Errorf("create viewer: %w", err)
		}
		logger.Info("created default viewer account", "username", bootstrapViewerName)
	}
	return nil
}

func ensureAdmin(users *UserStore, logger *slog.Logger, password string) error {
	passwordHash, err := auth.HashSecret(password)
	if err != nil {
		return err
	}
	pinHash, err := auth.HashSecret(defaultAdminPIN)
	if err != nil {
		return err
	}

	admin, err := users.GetByUsername(bootstrapAdminName)
	if err != nil {
		return fmt.Errorf("get admin: %w", err)
	}
	if admin == nil {
		if _, err := users.Create(bootstrapAdminName, passwordHash, pinHash, []string{string(permission.Admin)}); err != nil {
			return fmt.Errorf("create admin: %w", err)
		}
		logger.Info("created default admin account", "username", bootstrapAdminName)
		return nil
	}

	// Admin row exists but nobody holds admin rights anymore: restore it.
	if _, err := users.Update(admin.ID, admin.Username, []string{string(permission.Admin)}); err != nil {
		return fmt.Errorf("restore admin permissions: %w", err)
	}
	if err := users.SetPasswordHash(admin.ID, passwordHash); err != nil {
		return err
	}
	if err := users.SetPINHash(admin.ID, pinHash); err != nil {
		return err
	}
	if err := users.SetDisabled(admin.ID, false); err != nil {
		return err
	}
	logger.Warn("no enabled admin remained; reset default admin credentials", "username", bootstrapAdminName)
	return nil
}
