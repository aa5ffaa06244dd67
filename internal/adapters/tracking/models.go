package tracking

import "time"

// ProcessedEntry records one successfully retrieved declaration.
type ProcessedEntry struct {
	DeclarationID     string    `gorm:"column:declaration_id;primaryKey" json:"declaration_id"`
	TaxCode           string    `gorm:"column:tax_code" json:"tax_code"`
	DeclarationNumber string    `gorm:"column:declaration_number" json:"declaration_number"`
	FilePath          string    `gorm:"column:file_path" json:"file_path"`
	ProcessedAt       time.Time `gorm:"column:processed_at" json:"processed_at"`
}

// TableName keeps the table name stable across gorm versions.
func (ProcessedEntry) TableName() string { return "processed" }

// ErrorEntry is one row of the append-only error history.
type ErrorEntry struct {
	ID                int64     `gorm:"column:id;primaryKey;autoIncrement" json:"id"`
	Timestamp         time.Time `gorm:"column:timestamp;index:idx_error_history_timestamp" json:"timestamp"`
	DeclarationNumber string    `gorm:"column:declaration_number;index:idx_error_history_declaration" json:"declaration_number"`
	ErrorType         string    `gorm:"column:error_type" json:"error_type"`
	ErrorMessage      string    `gorm:"column:error_message" json:"error_message"`
	Resolved          int       `gorm:"column:resolved;default:0" json:"resolved"`
}

// TableName keeps the table name stable across gorm versions.
func (ErrorEntry) TableName() string { return "error_history" }
