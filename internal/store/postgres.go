package store

import (
	"errors"
	"fmt"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type roomRecord struct {
	Code      string `gorm:"primaryKey;size:8"`
	Data      []byte
	UpdatedAt time.Time
}

func (roomRecord) TableName() string {
	return "room_states"
}

// PostgresStore persists room slots in a single upsert-only table, so a
// room survives process restarts.
type PostgresStore struct {
	db *gorm.DB
}

func NewPostgresStore(host, user, password, dbname string, port int) (*PostgresStore, error) {
	dsn := fmt.Sprintf(
		"host=%s user=%s password=%s dbname=%s port=%d sslmode=disable",
		host, user, password, dbname, port,
	)

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := db.AutoMigrate(&roomRecord{}); err != nil {
		return nil, fmt.Errorf("failed to migrate room table: %w", err)
	}

	return &PostgresStore{db: db}, nil
}

func (s *PostgresStore) Load(code string) ([]byte, error) {
	var rec roomRecord

	err := s.db.First(&rec, "code = ?", code).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	return rec.Data, nil
}

func (s *PostgresStore) Save(code string, data []byte) error {
	rec := roomRecord{Code: code, Data: data, UpdatedAt: time.Now()}

	return s.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "code"}},
		UpdateAll: true,
	}).Create(&rec).Error
}

func (s *PostgresStore) Delete(code string) error {
	return s.db.Delete(&roomRecord{}, "code = ?", code).Error
}

func (s *PostgresStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}

	return sqlDB.Close()
}
