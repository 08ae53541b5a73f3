// Package storage persists the capture history and decides where capture
// files are written.
package storage

import (
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// ErrNotFound is returned when no history item has the requested id.
var ErrNotFound = errors.New("storage: capture not found")

// CaptureType classifies a history item.
type CaptureType string

const (
	TypeScreenshot CaptureType = "screenshot"
	TypeRecording  CaptureType = "recording"
	TypeGIF        CaptureType = "gif"
)

func (t CaptureType) prefix() string {
	switch t {
	case TypeRecording:
		return "Recording"
	case TypeGIF:
		return "GIF"
	default:
		return "Screenshot"
	}
}

// Item is one entry of the capture history.
type Item struct {
	ID         string      `gorm:"primaryKey" json:"id"`
	Type       CaptureType `gorm:"not null;index" json:"capture_type"`
	Filename   string      `gorm:"not null" json:"filename"`
	Path       string      `json:"path"`
	Size       int64       `json:"size"`
	CreatedAt  time.Time   `gorm:"index" json:"created_at"`
	IsFavorite bool        `json:"is_favorite"`
}

// BeforeCreate fills in the id and creation time.
func (i *Item) BeforeCreate(tx *gorm.DB) error {
	if i.ID == "" {
		i.ID = uuid.New().String()
	}
	if i.CreatedAt.IsZero() {
		i.CreatedAt = time.Now()
	}
	return nil
}

// Location selects the capture directory.
type Location string

const (
	LocationDefault Location = "default"
	LocationDesktop Location = "desktop"
	LocationCustom  Location = "custom"
)

// ParseLocation maps a configuration value to a Location. Unknown values
// select the default location.
func ParseLocation(value string) Location {
	switch Location(strings.ToLower(strings.TrimSpace(value))) {
	case LocationDesktop:
		return LocationDesktop
	case LocationCustom:
		return LocationCustom
	default:
		return LocationDefault
	}
}

// Info summarizes the stored captures.
type Info struct {
	Location       Location `json:"location"`
	Path           string   `json:"path"`
	TotalItems     int      `json:"total_items"`
	TotalSizeBytes int64    `json:"total_size_bytes"`
}

// Options configures Open.
type Options struct {
	// DatabasePath is the sqlite file. Empty selects <config dir>/ScreenCapture/history.db.
	DatabasePath string
	Location     Location
	CustomDir    string
}

// Store is the capture history backed by sqlite.
type Store struct {
	db *gorm.DB

	mu        sync.RWMutex
	location  Location
	customDir string
}

// Open opens (creating if needed) the history database.
func Open(opts Options) (*Store, error) {
	dbPath := opts.DatabasePath
	if dbPath == "" {
		dbPath = DefaultDatabasePath()
	}
	if dbPath != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(dbPath), 0o700); err != nil {
			return nil, fmt.Errorf("create database dir: %w", err)
		}
	}
	db, err := gorm.Open(sqlite.Open(dbPath), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := db.AutoMigrate(&Item{}); err != nil {
		return nil, fmt.Errorf("migrate database: %w", err)
	}
	s := &Store{db: db}
	if err := s.SetLocation(opts.Location, opts.CustomDir); err != nil {
		return nil, err
	}
	return s, nil
}

// Close releases the database handle.
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// DefaultDatabasePath is where the history lives when no path is configured.
func DefaultDatabasePath() string {
	return filepath.Join(appDataDir(), "history.db")
}

func appDataDir() string {
	base, err := os.UserConfigDir()
	if err != nil {
		base = os.TempDir()
	}
	return filepath.Join(base, "ScreenCapture")
}

// SetLocation changes where new captures are written. A custom location
// requires a directory.
func (s *Store) SetLocation(loc Location, customDir string) error {
	if loc == "" {
		loc = LocationDefault
	}
	if loc == LocationCustom && strings.TrimSpace(customDir) == "" {
		return fmt.Errorf("custom storage location requires a directory")
	}
	s.mu.Lock()
	s.location = loc
	s.customDir = customDir
	s.mu.Unlock()
	return nil
}

// Dir returns the directory captures are written to.
func (s *Store) Dir() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	switch s.location {
	case LocationDesktop:
		home, err := os.UserHomeDir()
		if err != nil {
			return appDataDir()
		}
		return filepath.Join(home, "Desktop")
	case LocationCustom:
		return s.customDir
	default:
		return filepath.Join(appDataDir(), "Screenshots")
	}
}

// GenerateFilename returns e.g. "Screenshot 2025-01-02 at 15.04.05.png".
func GenerateFilename(kind CaptureType, ext string, t time.Time) string {
	return fmt.Sprintf("%s %s.%s", kind.prefix(), t.Format("2006-01-02 at 15.04.05"), strings.TrimPrefix(ext, "."))
}

// NewPath returns a free path in Dir for a capture taken at t. Collisions
// within the same second get a " (n)" suffix.
func (s *Store) NewPath(kind CaptureType, ext string, t time.Time) (string, error) {
	dir := s.Dir()
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create capture dir: %w", err)
	}
	name := GenerateFilename(kind, ext, t)
	path := filepath.Join(dir, name)
	base := strings.TrimSuffix(name, filepath.Ext(name))
	for n := 1; ; n++ {
		if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
			return path, nil
		}
		path = filepath.Join(dir, fmt.Sprintf("%s (%d)%s", base, n, filepath.Ext(name)))
	}
}

// Add records a capture written to path.
func (s *Store) Add(kind CaptureType, path string, createdAt time.Time) (*Item, error) {
	item := &Item{
		Type:      kind,
		Filename:  filepath.Base(path),
		Path:      path,
		CreatedAt: createdAt,
	}
	if fi, err := os.Stat(path); err == nil {
		item.Size = fi.Size()
	}
	if err := s.db.Create(item).Error; err != nil {
		return nil, fmt.Errorf("add capture: %w", err)
	}
	log.Printf("storage: added %s %s", kind, item.Filename)
	return item, nil
}

// History returns all items, newest first.
func (s *Store) History() ([]Item, error) {
	var items []Item
	if err := s.db.Order("created_at DESC").Find(&items).Error; err != nil {
		return nil, fmt.Errorf("load history: %w", err)
	}
	return items, nil
}

// Get returns the item with id.
func (s *Store) Get(id string) (*Item, error) {
	var item Item
	err := s.db.Where("id = ?", id).First(&item).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &item, nil
}

// Delete removes the item and its file. A file that is already gone is not
// an error.
func (s *Store) Delete(id string) error {
	item, err := s.Get(id)
	if err != nil {
		return err
	}
	if err := s.db.Delete(&Item{}, "id = ?", id).Error; err != nil {
		return fmt.Errorf("delete capture: %w", err)
	}
	if item.Path != "" {
		if err := os.Remove(item.Path); err != nil && !errors.Is(err, os.ErrNotExist) {
			log.Printf("storage: remove %s: %v", item.Path, err)
		}
	}
	return nil
}

// ToggleFavorite flips the favorite flag and returns the new value.
func (s *Store) ToggleFavorite(id string) (bool, error) {
	var fav bool
	err := s.db.Transaction(func(tx *gorm.DB) error {
		var item Item
		if err := tx.Where("id = ?", id).First(&item).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrNotFound
			}
			return err
		}
		fav = !item.IsFavorite
		return tx.Model(&Item{}).Where("id = ?", id).Update("is_favorite", fav).Error
	})
	return fav, err
}

// Info reports the current location, item count and total size.
func (s *Store) Info() (Info, error) {
	var count int64
	if err := s.db.Model(&Item{}).Count(&count).Error; err != nil {
		return Info{}, err
	}
	var total struct{ Sum int64 }
	if err := s.db.Model(&Item{}).Select("COALESCE(SUM(size), 0) AS sum").Scan(&total).Error; err != nil {
		return Info{}, err
	}
	s.mu.RLock()
	loc := s.location
	s.mu.RUnlock()
	return Info{
		Location:       loc,
		Path:           s.Dir(),
		TotalItems:     int(count),
		TotalSizeBytes: total.Sum,
	}, nil
}
