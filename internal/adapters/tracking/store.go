package tracking

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"vnexim/mavach/internal/core/declaration"
)

// Store persists processed declarations and error history in a single SQLite
// file. Every operation runs in its own transaction; the underlying pool makes
// the store safe for concurrent use across goroutines.
type Store struct {
	db  *gorm.DB
	log *slog.Logger
}

// Open creates or opens the store at path, creating missing tables and
// indexes.
func Open(path string, log *slog.Logger) (*Store, error) {
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create tracking directory: %w", err)
		}
	}

	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("open tracking store: %w", err)
	}

	if err := db.AutoMigrate(&ProcessedEntry{}, &ErrorEntry{}); err != nil {
		return nil, fmt.Errorf("migrate tracking schema: %w", err)
	}

	return &Store{db: db, log: log}, nil
}

// Close releases the underlying connection pool.
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// IsProcessed reports whether the declaration has a processed row.
func (s *Store) IsProcessed(d declaration.Declaration) (bool, error) {
	var count int64
	if err := s.db.Model(&ProcessedEntry{}).Where("declaration_id = ?", d.ID()).Count(&count).Error; err != nil {
		return false, fmt.Errorf("query processed: %w", err)
	}
	return count > 0, nil
}

// GetAllProcessed returns the set of processed declaration ids.
func (s *Store) GetAllProcessed() (map[string]struct{}, error) {
	var ids []string
	if err := s.db.Model(&ProcessedEntry{}).Pluck("declaration_id", &ids).Error; err != nil {
		return nil, fmt.Errorf("list processed ids: %w", err)
	}
	set := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		set[id] = struct{}{}
	}
	return set, nil
}

// GetAllProcessedDetails returns every processed row, newest first.
func (s *Store) GetAllProcessedDetails() ([]ProcessedEntry, error) {
	var entries []ProcessedEntry
	if err := s.db.Order("processed_at DESC").Find(&entries).Error; err != nil {
		return nil, fmt.Errorf("list processed: %w", err)
	}
	return entries, nil
}

// AddProcessed upserts the processed row for a declaration. The declaration
// id is the primary key, so re-adding never duplicates.
func (s *Store) AddProcessed(d declaration.Declaration, filePath string) error {
	entry := ProcessedEntry{
		DeclarationID:     d.ID(),
		TaxCode:           d.TaxCode,
		DeclarationNumber: d.Number,
		FilePath:          filePath,
		ProcessedAt:       time.Now(),
	}
	err := s.db.Transaction(func(tx *gorm.DB) error {
		return tx.Save(&entry).Error
	})
	if err != nil {
		return fmt.Errorf("add processed: %w", err)
	}
	return nil
}

// UpdateProcessedTimestamp advances processed_at for a declaration.
func (s *Store) UpdateProcessedTimestamp(d declaration.Declaration) error {
	err := s.db.Model(&ProcessedEntry{}).
		Where("declaration_id = ?", d.ID()).
		Update("processed_at", time.Now()).Error
	if err != nil {
		return fmt.Errorf("update processed timestamp: %w", err)
	}
	return nil
}

// RecordError appends an error-history row.
func (s *Store) RecordError(declarationNumber, errorType, message string, at time.Time) error {
	if at.IsZero() {
		at = time.Now()
	}
	entry := ErrorEntry{
		Timestamp:         at,
		DeclarationNumber: declarationNumber,
		ErrorType:         errorType,
		ErrorMessage:      message,
	}
	if err := s.db.Create(&entry).Error; err != nil {
		return fmt.Errorf("record error: %w", err)
	}
	return nil
}

// GetErrorHistory returns errors of the last days, newest first.
func (s *Store) GetErrorHistory(days int) ([]ErrorEntry, error) {
	if days <= 0 {
		days = 30
	}
	cutoff := time.Now().AddDate(0, 0, -days)
	var entries []ErrorEntry
	if err := s.db.Where("timestamp >= ?", cutoff).Order("timestamp DESC").Find(&entries).Error; err != nil {
		return nil, fmt.Errorf("query error history: %w", err)
	}
	return entries, nil
}

// GetErrorsForDeclaration returns all errors of one declaration, newest first.
func (s *Store) GetErrorsForDeclaration(declarationNumber string) ([]ErrorEntry, error) {
	var entries []ErrorEntry
	if err := s.db.Where("declaration_number = ?", declarationNumber).Order("timestamp DESC").Find(&entries).Error; err != nil {
		return nil, fmt.Errorf("query declaration errors: %w", err)
	}
	return entries, nil
}

// ClearOldErrors deletes error rows older than days and returns the count.
func (s *Store) ClearOldErrors(days int) (int64, error) {
	if days <= 0 {
		days = 30
	}
	cutoff := time.Now().AddDate(0, 0, -days)
	result := s.db.Where("timestamp < ?", cutoff).Delete(&ErrorEntry{})
	if result.Error != nil {
		return 0, fmt.Errorf("clear old errors: %w", result.Error)
	}
	return result.RowsAffected, nil
}

// MarkResolved flags one error row as resolved. Returns false for unknown ids.
func (s *Store) MarkResolved(id int64) (bool, error) {
	result := s.db.Model(&ErrorEntry{}).Where("id = ?", id).Update("resolved", 1)
	if result.Error != nil {
		return false, fmt.Errorf("mark resolved: %w", result.Error)
	}
	return result.RowsAffected > 0, nil
}

// GetErrorCount returns the number of errors within the last days.
func (s *Store) GetErrorCount(days int) (int64, error) {
	if days <= 0 {
		days = 30
	}
	cutoff := time.Now().AddDate(0, 0, -days)
	var count int64
	if err := s.db.Model(&ErrorEntry{}).Where("timestamp >= ?", cutoff).Count(&count).Error; err != nil {
		return 0, fmt.Errorf("count errors: %w", err)
	}
	return count, nil
}
