package repository

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"gorm.io/gorm"
)

// Server is the per-guild configuration written by the init command.
type Server struct {
	ID                string `gorm:"primaryKey"`
	ActiveCategoryID  string `gorm:"not null"`
	ArchiveCategoryID string `gorm:"not null"`
	RoleManagerID     string `gorm:"not null"`
	FeedChannelID     string `gorm:"not null;default:''"`
	RoleTeamID        string `gorm:"not null;default:''"`
	TeamID            int64  `gorm:"not null;default:0"`
}

type ServerRepository struct {
	DB *gorm.DB
}

func NewServerRepository(db *gorm.DB) *ServerRepository {
	return &ServerRepository{DB: db}
}

func (r *ServerRepository) GetServerById(serverId string) (*Server, error) {
	timer := prometheus.NewTimer(queryDuration.WithLabelValues("GetServerById"))
	defer timer.ObserveDuration()
	var server *Server
	result := r.DB.First(&server, "id = ?", serverId)
	if result.Error != nil {
		return nil, fmt.Errorf("failed to find server %s: %w", serverId, result.Error)
	}
	return server, nil
}

// ReplaceServer deletes any existing configuration for the server and inserts the new one.
func (r *ServerRepository) ReplaceServer(server *Server) error {
	timer := prometheus.NewTimer(queryDuration.WithLabelValues("ReplaceServer"))
	defer timer.ObserveDuration()
	return r.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Delete(&Server{}, "id = ?", server.ID).Error; err != nil {
			return fmt.Errorf("failed to delete server %s: %w", server.ID, err)
		}
		if err := tx.Create(server).Error; err != nil {
			return fmt.Errorf("failed to create server %s: %w", server.ID, err)
		}
		return nil
	})
}

func (r *ServerRepository) DeleteServer(serverId string) error {
	timer := prometheus.NewTimer(queryDuration.WithLabelValues("DeleteServer"))
	defer timer.ObserveDuration()
	result := r.DB.Delete(&Server{}, "id = ?", serverId)
	if result.Error != nil {
		return fmt.Errorf("failed to delete server %s: %w", serverId, result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("failed to delete server %s: %w", serverId, gorm.ErrRecordNotFound)
	}
	return nil
}
