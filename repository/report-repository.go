package repository

import (
	"fmt"

	"github.com/lib/pq"
	"github.com/prometheus/client_golang/prometheus"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Unknown marks a place or score that has not been fetched yet.
const Unknown = -1

type Report struct {
	CTFID      int            `gorm:"primaryKey;autoIncrement:false;column:ctf_id"`
	Place      int            `gorm:"not null"`
	Score      int            `gorm:"not null"`
	Solves     int            `gorm:"not null"`
	Challenges pq.StringArray `gorm:"type:text[];not null;default:'{}'"`
}

func NewReport(ctfId int) *Report {
	return &Report{CTFID: ctfId, Place: Unknown, Score: Unknown, Challenges: pq.StringArray{}}
}

func (r *Report) ResultsKnown() bool {
	return r.Place != Unknown && r.Score != Unknown
}

type ReportRepository struct {
	DB *gorm.DB
}

func NewReportRepository(db *gorm.DB) *ReportRepository {
	return &ReportRepository{DB: db}
}

func (r *ReportRepository) GetReport(ctfId int) (*Report, error) {
	timer := prometheus.NewTimer(queryDuration.WithLabelValues("GetReport"))
	defer timer.ObserveDuration()
	var report *Report
	result := r.DB.First(&report, "ctf_id = ?", ctfId)
	if result.Error != nil {
		return nil, fmt.Errorf("failed to find report for ctf %d: %w", ctfId, result.Error)
	}
	return report, nil
}

func (r *ReportRepository) AddReport(report *Report) error {
	timer := prometheus.NewTimer(queryDuration.WithLabelValues("AddReport"))
	defer timer.ObserveDuration()
	if err := r.DB.Create(report).Error; err != nil {
		return fmt.Errorf("failed to create report for ctf %d: %w", report.CTFID, err)
	}
	return nil
}

func (r *ReportRepository) UpdateReport(report *Report) error {
	timer := prometheus.NewTimer(queryDuration.WithLabelValues("UpdateReport"))
	defer timer.ObserveDuration()
	if err := r.DB.Save(report).Error; err != nil {
		return fmt.Errorf("failed to update report for ctf %d: %w", report.CTFID, err)
	}
	return nil
}

// AddSolve increments the solve counter in a single statement, creating the report if absent.
func (r *ReportRepository) AddSolve(ctfId int, challenge string) (*Report, error) {
	timer := prometheus.NewTimer(queryDuration.WithLabelValues("AddSolve"))
	defer timer.ObserveDuration()
	report := NewReport(ctfId)
	report.Solves = 1
	assignments := map[string]any{"solves": gorm.Expr("reports.solves + 1")}
	if challenge != "" {
		report.Challenges = pq.StringArray{challenge}
		assignments["challenges"] = gorm.Expr("array_append(reports.challenges, ?)", challenge)
	}
	result := r.DB.Clauses(
		clause.OnConflict{
			Columns:   []clause.Column{{Name: "ctf_id"}},
			DoUpdates: clause.Assignments(assignments),
		},
	).Create(report)
	if result.Error != nil {
		return nil, fmt.Errorf("failed to add solve for ctf %d: %w", ctfId, result.Error)
	}
	return r.GetReport(ctfId)
}

// RemoveSolve decrements the solve counter, never below zero.
func (r *ReportRepository) RemoveSolve(ctfId int) (*Report, error) {
	timer := prometheus.NewTimer(queryDuration.WithLabelValues("RemoveSolve"))
	defer timer.ObserveDuration()
	result := r.DB.Model(&Report{}).
		Where("ctf_id = ?", ctfId).
		Update("solves", gorm.Expr("GREATEST(solves - 1, 0)"))
	if result.Error != nil {
		return nil, fmt.Errorf("failed to remove solve for ctf %d: %w", ctfId, result.Error)
	}
	return r.GetReport(ctfId)
}
