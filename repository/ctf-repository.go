package repository

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"gorm.io/gorm"
)

// CTF is one tracked competition and the platform resources provisioned for it.
type CTF struct {
	ID            int    `gorm:"primaryKey"`
	ServerID      string `gorm:"not null;uniqueIndex:idx_ctf_server_name"`
	Name          string `gorm:"not null;uniqueIndex:idx_ctf_server_name"`
	Description   string `gorm:"not null;default:''"`
	TextChannelID string `gorm:"not null;index"`
	EventID       string `gorm:"not null"`
	RoleID        string `gorm:"not null"`
	MessageID     string `gorm:"not null;index"`
	// channel the announcement message was posted in
	FeedChannelID string `gorm:"not null;default:''"`
	CTFTimeID     int64  `gorm:"column:ctftime_id;not null;default:0"`
	URL           string `gorm:"not null;default:''"`
	IsCTFd        bool   `gorm:"column:is_ctfd;not null;default:false"`
	TeamName      string `gorm:"not null;default:''"`

	Report      *Report      `gorm:"foreignKey:CTFID;constraint:OnDelete:CASCADE"`
	Credentials *Credentials `gorm:"foreignKey:CTFID;constraint:OnDelete:CASCADE"`
}

type CTFRepository struct {
	DB *gorm.DB
}

func NewCTFRepository(db *gorm.DB) *CTFRepository {
	return &CTFRepository{DB: db}
}

func (r *CTFRepository) AddCTF(ctf *CTF) error {
	timer := prometheus.NewTimer(queryDuration.WithLabelValues("AddCTF"))
	defer timer.ObserveDuration()
	if err := r.DB.Create(ctf).Error; err != nil {
		return fmt.Errorf("failed to create ctf %s: %w", ctf.Name, err)
	}
	return nil
}

func (r *CTFRepository) IsCTFPresent(name string, serverId string) (bool, error) {
	timer := prometheus.NewTimer(queryDuration.WithLabelValues("IsCTFPresent"))
	defer timer.ObserveDuration()
	var count int64
	result := r.DB.Model(&CTF{}).Where("name = ? AND server_id = ?", name, serverId).Count(&count)
	if result.Error != nil {
		return false, fmt.Errorf("failed to check ctf %s: %w", name, result.Error)
	}
	return count > 0, nil
}

func (r *CTFRepository) first(query string, conditions ...any) (*CTF, error) {
	var ctf *CTF
	result := r.DB.Where(query, conditions...).First(&ctf)
	if result.Error != nil {
		return nil, fmt.Errorf("failed to find ctf: %w", result.Error)
	}
	return ctf, nil
}

func (r *CTFRepository) GetCTFById(ctfId int) (*CTF, error) {
	timer := prometheus.NewTimer(queryDuration.WithLabelValues("GetCTFById"))
	defer timer.ObserveDuration()
	return r.first("id = ?", ctfId)
}

func (r *CTFRepository) GetCTFByName(name string, serverId string) (*CTF, error) {
	timer := prometheus.NewTimer(queryDuration.WithLabelValues("GetCTFByName"))
	defer timer.ObserveDuration()
	return r.first("name = ? AND server_id = ?", name, serverId)
}

func (r *CTFRepository) GetCTFByMessageId(messageId string, serverId string) (*CTF, error) {
	timer := prometheus.NewTimer(queryDuration.WithLabelValues("GetCTFByMessageId"))
	defer timer.ObserveDuration()
	return r.first("message_id = ? AND server_id = ?", messageId, serverId)
}

func (r *CTFRepository) GetCTFByChannelId(channelId string, serverId string) (*CTF, error) {
	timer := prometheus.NewTimer(queryDuration.WithLabelValues("GetCTFByChannelId"))
	defer timer.ObserveDuration()
	return r.first("text_channel_id = ? AND server_id = ?", channelId, serverId)
}

func (r *CTFRepository) ListCTFs(serverId string) ([]*CTF, error) {
	timer := prometheus.NewTimer(queryDuration.WithLabelValues("ListCTFs"))
	defer timer.ObserveDuration()
	ctfs := make([]*CTF, 0)
	result := r.DB.Where("server_id = ?", serverId).Order("id ASC").Find(&ctfs)
	if result.Error != nil {
		return nil, fmt.Errorf("failed to list ctfs: %w", result.Error)
	}
	return ctfs, nil
}

func (r *CTFRepository) DeleteCTF(ctfId int) error {
	timer := prometheus.NewTimer(queryDuration.WithLabelValues("DeleteCTF"))
	defer timer.ObserveDuration()
	return r.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Delete(&Report{}, "ctf_id = ?", ctfId).Error; err != nil {
			return err
		}
		if err := tx.Delete(&Credentials{}, "ctf_id = ?", ctfId).Error; err != nil {
			return err
		}
		result := tx.Delete(&CTF{}, ctfId)
		if result.Error != nil {
			return fmt.Errorf("failed to delete ctf %d: %w", ctfId, result.Error)
		}
		if result.RowsAffected == 0 {
			return fmt.Errorf("failed to delete ctf %d: %w", ctfId, gorm.ErrRecordNotFound)
		}
		return nil
	})
}
