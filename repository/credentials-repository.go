package repository

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type Credentials struct {
	CTFID    int    `gorm:"primaryKey;autoIncrement:false;column:ctf_id"`
	Username string `gorm:"not null"`
	Password string `gorm:"not null"`
	Personal bool   `gorm:"not null"`
}

type CredentialsRepository struct {
	DB *gorm.DB
}

func NewCredentialsRepository(db *gorm.DB) *CredentialsRepository {
	return &CredentialsRepository{DB: db}
}

// SaveCredentials replaces any credentials already stored for the ctf.
func (r *CredentialsRepository) SaveCredentials(credentials *Credentials) error {
	timer := prometheus.NewTimer(queryDuration.WithLabelValues("SaveCredentials"))
	defer timer.ObserveDuration()
	result := r.DB.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "ctf_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"username", "password", "personal"}),
	}).Create(credentials)
	if result.Error != nil {
		return fmt.Errorf("failed to save credentials for ctf %d: %w", credentials.CTFID, result.Error)
	}
	return nil
}

func (r *CredentialsRepository) GetCredentials(ctfId int) (*Credentials, error) {
	timer := prometheus.NewTimer(queryDuration.WithLabelValues("GetCredentials"))
	defer timer.ObserveDuration()
	var credentials *Credentials
	result := r.DB.First(&credentials, "ctf_id = ?", ctfId)
	if result.Error != nil {
		return nil, fmt.Errorf("failed to find credentials for ctf %d: %w", ctfId, result.Error)
	}
	return credentials, nil
}

func (r *CredentialsRepository) DeleteCredentials(ctfId int) error {
	timer := prometheus.NewTimer(queryDuration.WithLabelValues("DeleteCredentials"))
	defer timer.ObserveDuration()
	result := r.DB.Delete(&Credentials{}, "ctf_id = ?", ctfId)
	if result.Error != nil {
		return fmt.Errorf("failed to delete credentials for ctf %d: %w", ctfId, result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("failed to delete credentials for ctf %d: %w", ctfId, gorm.ErrRecordNotFound)
	}
	return nil
}
