package models

import (
	"encoding/json"
	"time"

	"gorm.io/datatypes"
)

// Course represents a sellable course taught by an instructor.
type Course struct {
	ID           uint           `gorm:"primaryKey" json:"id"`
	Title        string         `gorm:"size:255;not null" json:"title"`
	InstructorID uint           `gorm:"index;not null" json:"instructor_id"`
	Price        float64        `gorm:"type:numeric(12,2);not null" json:"price"`
	PlanConfig   datatypes.JSON `gorm:"type:json" json:"plan_config"`
	IsPublished  bool           `gorm:"not null;default:false" json:"is_published"`
	CreatedAt    time.Time      `json:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at"`
	Instructor   User           `gorm:"foreignKey:InstructorID" json:"instructor"`
}

// InstallmentPlanConfig describes how tuition splits into scheduled payments.
// Shares are percentages of the course price charged after the upfront
// installment, in schedule order.
type InstallmentPlanConfig struct {
	InstallmentCount int       `json:"installment_count"`
	Shares           []float64 `json:"shares"`
}

const defaultInstallmentShare = 30.0

// DefaultInstallmentPlanConfig is used when a course has no configured split.
func DefaultInstallmentPlanConfig() InstallmentPlanConfig {
	return InstallmentPlanConfig{
		InstallmentCount: 3,
		Shares:           []float64{defaultInstallmentShare, defaultInstallmentShare},
	}
}

// InstallmentPlan decodes the configured split, falling back to the default
// when the column is empty or malformed.
func (c Course) InstallmentPlan() InstallmentPlanConfig {
	if len(c.PlanConfig) == 0 {
		return DefaultInstallmentPlanConfig()
	}

	var cfg InstallmentPlanConfig
	if err := json.Unmarshal(c.PlanConfig, &cfg); err != nil || cfg.InstallmentCount < 2 {
		return DefaultInstallmentPlanConfig()
	}

	if len(cfg.Shares) < cfg.InstallmentCount-1 {
		shares := make([]float64, cfg.InstallmentCount-1)
		for i := range shares {
			shares[i] = defaultInstallmentShare
		}
		copy(shares, cfg.Shares)
		cfg.Shares = shares
	}

	return cfg
}
