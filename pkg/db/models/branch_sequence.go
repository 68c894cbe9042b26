package models

import "time"

// BranchSequence hands out the per-branch sale sequence. The row is
// incremented with a guarded update inside the sale transaction so two
// concurrent sales can never observe the same value.
type BranchSequence struct {
	BranchID  uint      `gorm:"column:branch_id;primaryKey"`
	LastValue int64     `gorm:"column:last_value;not null;default:0"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime"`
}
