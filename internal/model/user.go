package model

import "time"

// Permission is the state of the user's consent to receive notifications.
type Permission string

const (
	PermissionDefault Permission = "default"
	PermissionGranted Permission = "granted"
	PermissionDenied  Permission = "denied"
)

// User stores Telegram user metadata.
type User struct {
	ID                     string `gorm:"primaryKey;size:36"`
	TelegramID             int64  `gorm:"uniqueIndex"`
	ChatID                 int64
	FirstName              string
	LastName               string
	Username               string
	NotificationPermission Permission `gorm:"default:default"`
	CreatedAt              time.Time
	UpdatedAt              time.Time
}
