package models

import (
	"time"
)

// GenerationJob is the artifact a successful channel pass leaves behind: the
// generated Veo prompt plus title, waiting for the bot dispatcher to pick up.
type GenerationJob struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	RunID      string    `gorm:"size:36;not null;index" json:"run_id"`
	ChannelID  uint      `gorm:"not null;index" json:"channel_id"`
	IdeaTitle  string    `gorm:"size:500" json:"idea_title"`
	VeoPrompt  string    `gorm:"type:text;not null" json:"veo_prompt"`
	VideoTitle string    `gorm:"size:500" json:"video_title"`
	Status     string    `gorm:"size:50;default:'pending'" json:"status"`
	CreatedAt  time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt  time.Time `gorm:"autoUpdateTime" json:"updated_at"`

	Channel Channel `gorm:"foreignKey:ChannelID" json:"channel"`
}
