package service

import (
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/adilbekov/autoreel/internal/models"
)

// ChannelService is the read surface over the channel registry. Channel CRUD
// lives outside the core; the automation only lists what is due and advances
// next-run markers after processing.
type ChannelService struct {
	db     *gorm.DB
	logger *zap.Logger
}

func NewChannelService(db *gorm.DB, logger *zap.Logger) *ChannelService {
	return &ChannelService{
		db:     db,
		logger: logger,
	}
}

// ListDue returns enabled channels whose next run is unset or in the past.
func (c *ChannelService) ListDue(now time.Time) ([]models.Channel, error) {
	var channels []models.Channel
	err := c.db.Where("enabled = ?", true).
		Where("next_run_at IS NULL OR next_run_at <= ?", now).
		Order("id asc").
		Find(&channels).Error
	return channels, err
}

// CountEnabled returns the number of enabled channels.
func (c *ChannelService) CountEnabled() (int64, error) {
	var count int64
	err := c.db.Model(&models.Channel{}).Where("enabled = ?", true).Count(&count).Error
	return count, err
}

// UpdateNextRun advances a channel's next-run marker.
func (c *ChannelService) UpdateNextRun(channelID uint, next time.Time) error {
	return c.db.Model(&models.Channel{}).
		Where("id = ?", channelID).
		Update("next_run_at", next).Error
}
