package entities

type User struct {
	ChatID    int64  `json:"id" gorm:"primaryKey"`
	FirstName string `json:"first_name,omitempty"`
}
