package models

import (
	"time"

	"bitbucket.org/mmdatafocus/stockbot_backend/config"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// DirectoryUser maps a platform user id to the display name written into
// ledger rows as the source actor.
type DirectoryUser struct {
	ID          int       `gorm:"primary_key" json:"id"`
	UserID      string    `gorm:"size:64;uniqueIndex;not null" json:"user_id"`
	DisplayName string    `gorm:"size:100;not null" json:"display_name"`
	CreatedAt   time.Time `gorm:"autoCreateTime" json:"created_at"`
}

type UserDirectory struct {
	DB     *gorm.DB
	Logger *logrus.Logger
}

func NewUserDirectory(db *gorm.DB, logger *logrus.Logger) *UserDirectory {
	return &UserDirectory{DB: db, Logger: logger}
}

func (d *UserDirectory) usersCacheTTL() time.Duration {
	if settings := config.GetSettings(); settings != nil {
		return settings.UsersCacheTTL
	}
	return time.Hour
}

func (d *UserDirectory) loadAll() (map[string]string, error) {
	if users, ok := getCachedUsers(); ok {
		return users, nil
	}
	var rows []DirectoryUser
	if err := d.DB.Find(&rows).Error; err != nil {
		config.LogError(d.Logger, "models", "loadAll", "scanning user directory", nil, err)
		return nil, err
	}
	users := make(map[string]string, len(rows))
	for _, row := range rows {
		users[row.UserID] = row.DisplayName
	}
	setCachedUsers(users, d.usersCacheTTL())
	return users, nil
}

// DisplayName resolves a known user from the cached directory.
func (d *UserDirectory) DisplayName(userID string) (string, bool, error) {
	users, err := d.loadAll()
	if err != nil {
		return "", false, err
	}
	name, ok := users[userID]
	return name, ok, nil
}

// Register stores a first-contact user and drops the directory cache, the
// only event that invalidates it.
func (d *UserDirectory) Register(userID, displayName string) error {
	if err := d.DB.Create(&DirectoryUser{UserID: userID, DisplayName: displayName}).Error; err != nil {
		config.LogError(d.Logger, "models", "Register", "registering user", userID, err)
		return err
	}
	InvalidateUsersCache()
	return nil
}
