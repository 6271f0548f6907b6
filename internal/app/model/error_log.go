package model

import "time"

// ErrorLog is one entry of the error-tracking store.
type ErrorLog struct {
	ID        uint      `gorm:"primarykey" json:"id"`
	Source    string    `gorm:"type:varchar(100);not null;index" json:"source"`
	Operation string    `gorm:"type:varchar(100);not null" json:"operation"`
	Message   string    `gorm:"type:text;not null" json:"message"`
	Stack     string    `gorm:"type:text" json:"stack"`
	CreatedAt time.Time `gorm:"index" json:"created_at"`
}

func (ErrorLog) TableName() string {
	return "error_logs"
}
