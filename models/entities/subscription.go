package entities

// Subscription pairs a Telegram chat with a feed source. The unique index
// rejects duplicate subscribe attempts at the storage level.
type Subscription struct {
	ID       uint  `gorm:"primaryKey"`
	UserID   int64 `gorm:"uniqueIndex:idx_user_source;not null"`
	SourceID uint  `gorm:"uniqueIndex:idx_user_source;not null"`
}
