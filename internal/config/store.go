package config

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"sync"
)

// Settings holds user-configurable scan defaults.
type Settings struct {
	Device      string `json:"device"`     // empty = configured device
	ColorMode   string `json:"colorMode"`  // "auto", "color", "grayscale", "bw"
	Resolution  int    `json:"resolution"` // 0 = device default
	Source      string `json:"source"`     // "auto", "flatbed", "adf", "duplex"
	Format      string `json:"format"`
	SaveType    string `json:"saveType"` // "none", "local", "ftp"
	SavePath    string `json:"savePath"` // directory path when SaveType="local"
	FTPHost     string `json:"ftpHost"`  // host:port when SaveType="ftp"
	FTPUser     string `json:"ftpUser"`
	FTPPassword string `json:"ftpPassword"`
	FTPDir      string `json:"ftpDir"`
}

var (
	colorModes = []string{"auto", "color", "grayscale", "bw"}
	sources    = []string{"auto", "flatbed", "adf", "duplex"}
	formats    = []string{"application/pdf", "image/png", "image/jpeg", "image/tiff"}
	saveTypes  = []string{"none", "local", "ftp"}
)

// DefaultSettings returns the default scan settings.
func DefaultSettings() Settings {
	return Settings{
		ColorMode:  "auto",
		Resolution: 0,
		Source:     "auto",
		Format:     "application/pdf",
		SaveType:   "none",
		SavePath:   "",
	}
}

// Validate checks the settings for unknown values.
func (s Settings) Validate() error {
	if !slices.Contains(colorModes, s.ColorMode) {
		return fmt.Errorf("invalid color mode %q", s.ColorMode)
	}
	if !slices.Contains(sources, s.Source) {
		return fmt.Errorf("invalid source %q", s.Source)
	}
	if !slices.Contains(formats, s.Format) {
		return fmt.Errorf("invalid format %q", s.Format)
	}
	if !slices.Contains(saveTypes, s.SaveType) {
		return fmt.Errorf("invalid save type %q", s.SaveType)
	}
	if s.Resolution < 0 || s.Resolution > 9600 {
		return fmt.Errorf("invalid resolution %d", s.Resolution)
	}
	if s.SaveType == "local" && s.SavePath == "" {
		return fmt.Errorf("savePath is required when saveType is local")
	}
	if s.SaveType == "ftp" && s.FTPHost == "" {
		return fmt.Errorf("ftpHost is required when saveType is ftp")
	}
	return nil
}

// Store provides thread-safe settings persistence backed by a JSON file.
type Store struct {
	mu       sync.RWMutex
	settings Settings
	path     string
}

// NewStore creates a Store that persists settings to dataDir/settings.json.
// If the file does not exist or is invalid, default settings are used.
func NewStore(dataDir string) (*Store, error) {
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return nil, err
	}
	s := &Store{
		path:     filepath.Join(dataDir, "settings.json"),
		settings: DefaultSettings(),
	}
	s.load()
	return s, nil
}

// NewMemoryStore creates a Store that keeps settings in memory only (no file persistence).
func NewMemoryStore() *Store {
	return &Store{settings: DefaultSettings()}
}

// Get returns a copy of the current settings.
func (s *Store) Get() Settings {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.settings
}

// Update validates and replaces the settings and persists to disk.
func (s *Store) Update(settings Settings) error {
	if err := settings.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.settings = settings
	return s.save()
}

func (s *Store) load() {
	data, err := os.ReadFile(s.path)
	if err != nil {
		return // file missing is OK, use defaults
	}
	settings := DefaultSettings()
	if err := json.Unmarshal(data, &settings); err != nil {
		slog.Warn("invalid settings file, using defaults", "path", s.path, "err", err)
		return
	}
	if err := settings.Validate(); err != nil {
		slog.Warn("invalid settings file, using defaults", "path", s.path, "err", err)
		return
	}
	s.settings = settings
}

func (s *Store) save() error {
	if s.path == "" {
		return nil // memory-only mode
	}
	data, err := json.MarshalIndent(s.settings, "", "  ")
	if err != nil {
		return err
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, append(data, '\n'), 0644); err != nil {
		return err
	}
	return os.Rename(tmp, s.path)
}
