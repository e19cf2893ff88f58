package models

import (
	"time"
)

// Supported channel languages.
const (
	LanguageRU = "ru"
	LanguageKK = "kk"
	LanguageEN = "en"
)

// Channel is an external configuration unit the automation acts upon each
// cycle. The core treats it as read-only input except for NextRunAt, which is
// advanced after a channel has been processed. CRUD lives outside the core.
type Channel struct {
	ID                  uint       `gorm:"primaryKey" json:"id"`
	Name                string     `gorm:"size:255;not null" json:"name"`
	Description         string     `gorm:"type:text" json:"description"`
	Language            string     `gorm:"size:10;default:'ru'" json:"language"`
	DurationSeconds     int        `gorm:"default:8" json:"duration_seconds"`
	IdeaPromptTemplate  string     `gorm:"type:text" json:"idea_prompt_template"`
	VideoPromptTemplate string     `gorm:"type:text" json:"video_prompt_template"`
	Enabled             bool       `gorm:"default:true;index" json:"enabled"`
	NextRunAt           *time.Time `gorm:"index" json:"next_run_at"`
	CreatedAt           time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt           time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}
