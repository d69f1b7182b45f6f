package entities

// UserPreference controls notification delivery per user. An inactive user
// keeps their subscriptions but is skipped by the synchronization cycle.
// Users without a row are active. No column default: gorm drops zero-value
// fields carrying a default tag on insert, which would turn a first
// Active=false write into active=true.
type UserPreference struct {
	UserID int64 `gorm:"primaryKey"`
	Active bool  `gorm:"not null"`
}
