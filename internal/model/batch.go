package model

import "time"

// Batch is one uploaded lead spreadsheet.
type Batch struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	OperatorID uint      `gorm:"index" json:"operator_id"`
	FileName   string    `gorm:"size:256;not null" json:"file_name"`
	Path       string    `gorm:"size:512" json:"path"`
	TotalLeads int       `json:"total_leads"`
	CreatedAt  time.Time `json:"created_at"`
}
