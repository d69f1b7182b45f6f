package entities

import "time"

// Source is a polled feed endpoint. LastUpdate is the watermark: the publish
// time of the most recent item ever observed for this source. It only moves
// forward, and only the synchronization cycle moves it.
type Source struct {
	ID         uint   `gorm:"primaryKey"`
	Title      string
	Link       string `gorm:"uniqueIndex;not null"`
	ErrorCount int    `gorm:"not null;default:0"`
	CreatedAt  time.Time
	LastUpdate time.Time `gorm:"not null"`
}
