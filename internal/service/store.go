package service

import (
	"fmt"

	"gorm.io/gorm"

	"github.com/adilbekov/autoreel/internal/models"
)

// RunStore is the persistence collaborator for runs and their event trail.
// Every write may fail; the ledger catches those failures so they never reach
// the automation cycle.
type RunStore interface {
	CreateRun(run *models.AutomationRun) error
	UpdateRun(id string, patch map[string]any) error
	AppendEvent(event *models.RunEvent) error

	ListRecentRuns(limit int) ([]models.AutomationRun, error)
	GetRun(id string) (*models.AutomationRun, error)
	ListEvents(runID string) ([]models.RunEvent, error)
	LastSuccessfulRunAt() (*models.AutomationRun, error)
	CountEventsByLevel(runID, level string) (int64, error)
}

// GormRunStore backs RunStore with the postgres database.
type GormRunStore struct {
	db *gorm.DB
}

func NewGormRunStore(db *gorm.DB) *GormRunStore {
	return &GormRunStore{db: db}
}

func (s *GormRunStore) CreateRun(run *models.AutomationRun) error {
	if err := s.db.Create(run).Error; err != nil {
		return fmt.Errorf("failed to create run: %w", err)
	}
	return nil
}

func (s *GormRunStore) UpdateRun(id string, patch map[string]any) error {
	if err := s.db.Model(&models.AutomationRun{}).Where("id = ?", id).Updates(patch).Error; err != nil {
		return fmt.Errorf("failed to update run: %w", err)
	}
	return nil
}

func (s *GormRunStore) AppendEvent(event *models.RunEvent) error {
	if err := s.db.Create(event).Error; err != nil {
		return fmt.Errorf("failed to append event: %w", err)
	}
	return nil
}

func (s *GormRunStore) CreateJob(job *models.GenerationJob) error {
	if err := s.db.Create(job).Error; err != nil {
		return fmt.Errorf("failed to create job: %w", err)
	}
	return nil
}

func (s *GormRunStore) ListRecentRuns(limit int) ([]models.AutomationRun, error) {
	var runs []models.AutomationRun
	err := s.db.Order("started_at desc").Limit(limit).Find(&runs).Error
	return runs, err
}

func (s *GormRunStore) GetRun(id string) (*models.AutomationRun, error) {
	var run models.AutomationRun
	if err := s.db.Where("id = ?", id).First(&run).Error; err != nil {
		return nil, err
	}
	return &run, nil
}

func (s *GormRunStore) ListEvents(runID string) ([]models.RunEvent, error) {
	var events []models.RunEvent
	err := s.db.Where("run_id = ?", runID).Order("created_at asc, id asc").Find(&events).Error
	return events, err
}

func (s *GormRunStore) LastSuccessfulRunAt() (*models.AutomationRun, error) {
	var run models.AutomationRun
	err := s.db.Where("status = ?", models.StatusSuccess).
		Order("finished_at desc").
		First(&run).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &run, nil
}

func (s *GormRunStore) CountEventsByLevel(runID, level string) (int64, error) {
	var count int64
	err := s.db.Model(&models.RunEvent{}).
		Where("run_id = ? AND level = ?", runID, level).
		Count(&count).Error
	return count, err
}
