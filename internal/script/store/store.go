// Package store is the persistent-variable backing store for scripts:
// each (script name, key) pair survives across world restarts, keyed the
// same way the original sandbox keeps one in-memory StateData per
// running script, just durable. It is deliberately not a saved-world
// format: only script variables live here, nothing about board layout.
package store

import (
	"encoding/json"
	"fmt"
	"sync"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Variable is the GORM model backing one persistent script variable.
// Values are stored JSON-encoded so any goja-representable value
// (number, string, bool, array, object) round-trips without a wider
// column schema.
type Variable struct {
	Script    string `gorm:"primaryKey;size:128"`
	Key       string `gorm:"primaryKey;size:128"`
	ValueJSON string `gorm:"column:value_json"`
}

func (Variable) TableName() string { return "script_variables" }

// Store wraps a *gorm.DB and a small in-process cache so repeated Get
// calls from a hot script loop don't round-trip to SQLite.
type Store struct {
	db *gorm.DB

	mu    sync.RWMutex
	cache map[string]map[string]interface{}
}

// Open opens (creating if needed) the SQLite-backed persistent variable
// store at path and runs its migration.
func Open(path string) (*Store, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	if err != nil {
		return nil, fmt.Errorf("script/store: open %s: %w", path, err)
	}
	if err := db.AutoMigrate(&Variable{}); err != nil {
		return nil, fmt.Errorf("script/store: migrate: %w", err)
	}
	return &Store{db: db, cache: map[string]map[string]interface{}{}}, nil
}

// Get returns the current value of a script's variable, loading it from
// the cache or, on a cache miss, from the database.
func (s *Store) Get(script, key string) (interface{}, bool) {
	s.mu.RLock()
	if vars, ok := s.cache[script]; ok {
		if v, ok := vars[key]; ok {
			s.mu.RUnlock()
			return v, true
		}
	}
	s.mu.RUnlock()

	var row Variable
	err := s.db.Where("script = ? AND key = ?", script, key).First(&row).Error
	if err != nil {
		return nil, false
	}
	var v interface{}
	if err := json.Unmarshal([]byte(row.ValueJSON), &v); err != nil {
		return nil, false
	}
	s.mu.Lock()
	s.cacheSetLocked(script, key, v)
	s.mu.Unlock()
	return v, true
}

// Set persists a script's variable, upserting the row and updating the
// in-process cache.
func (s *Store) Set(script, key string, value interface{}) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("script/store: encode %s.%s: %w", script, key, err)
	}
	row := Variable{Script: script, Key: key, ValueJSON: string(data)}
	if err := s.db.Save(&row).Error; err != nil {
		return fmt.Errorf("script/store: save %s.%s: %w", script, key, err)
	}
	var cached interface{}
	if err := json.Unmarshal(data, &cached); err != nil {
		return fmt.Errorf("script/store: decode %s.%s: %w", script, key, err)
	}
	s.mu.Lock()
	s.cacheSetLocked(script, key, cached)
	s.mu.Unlock()
	return nil
}

func (s *Store) cacheSetLocked(script, key string, value interface{}) {
	vars, ok := s.cache[script]
	if !ok {
		vars = map[string]interface{}{}
		s.cache[script] = vars
	}
	vars[key] = value
}

// Close releases the underlying database connection.
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
