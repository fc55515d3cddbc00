package sessionstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// sessionRow is the single-row table backing the sqlite store. The record
// name is the primary key so one database can hold multiple named profiles.
type sessionRow struct {
	Name      string    `gorm:"primaryKey;column:name"`
	Blob      string    `gorm:"column:blob"`
	UpdatedAt time.Time `gorm:"column:updated_at"`
}

func (sessionRow) TableName() string {
	return "session_records"
}

type sqliteStore struct {
	db   *gorm.DB
	name string
}

// NewSQLite opens (or creates) the sqlite database at path and returns a
// store bound to the named record.
func NewSQLite(path, name string) (Store, error) {
	if path == "" {
		return nil, fmt.Errorf("sqlite path is required")
	}
	if name == "" {
		return nil, fmt.Errorf("record name is required")
	}

	gormLogger := gormlogger.New(
		log.New(io.Discard, "", log.LstdFlags),
		gormlogger.Config{LogLevel: gormlogger.Silent},
	)

	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger:                 gormLogger,
		SkipDefaultTransaction: true,
	})
	if err != nil {
		return nil, fmt.Errorf("opening session db: %w", err)
	}
	if err := db.AutoMigrate(&sessionRow{}); err != nil {
		return nil, fmt.Errorf("migrating session db: %w", err)
	}

	return &sqliteStore{db: db, name: name}, nil
}

func (s *sqliteStore) Load(ctx context.Context) (*Record, error) {
	var row sessionRow
	err := s.db.WithContext(ctx).First(&row, "name = ?", s.name).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("loading session record: %w", err)
	}

	var record Record
	if err := json.Unmarshal([]byte(row.Blob), &record); err != nil {
		return nil, fmt.Errorf("decoding session record: %w", err)
	}
	return &record, nil
}

func (s *sqliteStore) Save(ctx context.Context, record *Record) error {
	if record == nil {
		return fmt.Errorf("record is required")
	}
	blob, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("encoding session record: %w", err)
	}

	row := sessionRow{Name: s.name, Blob: string(blob), UpdatedAt: time.Now()}
	return s.db.WithContext(ctx).Save(&row).Error
}

func (s *sqliteStore) Delete(ctx context.Context) error {
	return s.db.WithContext(ctx).Delete(&sessionRow{}, "name = ?", s.name).Error
}
