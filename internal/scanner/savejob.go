package scanner

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/mzyy94/airsane/internal/config"
	"github.com/mzyy94/airsane/internal/metrics"
)

// JobStatus is a snapshot of a ScanJobStatus.
type JobStatus struct {
	Scanning  bool     `json:"scanning"`
	Trigger   string   `json:"trigger,omitempty"`
	LastError string   `json:"lastError,omitempty"`
	LastScan  string   `json:"lastScan,omitempty"` // RFC3339
	Pages     int      `json:"pages"`
	Files     []string `json:"files,omitempty"`
}

// ScanJobStatus tracks the state of a save-to-directory scan job.
type ScanJobStatus struct {
	mu      sync.RWMutex
	state   JobStatus
	last    *Page
	watches map[chan JobStatus]struct{}
}

// Snapshot returns a copy of the current status.
func (s *ScanJobStatus) Snapshot() JobStatus {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshot()
}

func (s *ScanJobStatus) snapshot() JobStatus {
	snap := s.state
	snap.Files = append([]string(nil), s.state.Files...)
	return snap
}

// TryStart marks a scan as in progress. It returns false if one already
// is.
func (s *ScanJobStatus) TryStart(trigger string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state.Scanning {
		return false
	}
	s.state.Scanning = true
	s.state.Trigger = trigger
	s.state.LastError = ""
	s.notify()
	return true
}

// SetResult records the outcome of a completed scan.
func (s *ScanJobStatus) SetResult(err error, pages []Page, files []string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.Scanning = false
	s.state.LastScan = time.Now().UTC().Format(time.RFC3339)
	s.state.Pages = len(pages)
	s.state.Files = files
	if len(pages) > 0 {
		s.last = &pages[len(pages)-1]
	}
	if err != nil {
		s.state.LastError = err.Error()
	} else {
		s.state.LastError = ""
	}
	s.notify()
}

// LastPage returns the last page of the most recent scan.
func (s *ScanJobStatus) LastPage() (Page, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.last == nil {
		return Page{}, false
	}
	return *s.last, true
}

// Watch returns a channel receiving a snapshot after each change, and a
// function to stop watching. Slow receivers miss intermediate updates.
func (s *ScanJobStatus) Watch() (<-chan JobStatus, func()) {
	ch := make(chan JobStatus, 1)
	s.mu.Lock()
	if s.watches == nil {
		s.watches = map[chan JobStatus]struct{}{}
	}
	s.watches[ch] = struct{}{}
	s.mu.Unlock()
	return ch, func() {
		s.mu.Lock()
		delete(s.watches, ch)
		s.mu.Unlock()
	}
}

func (s *ScanJobStatus) notify() {
	snap := s.snapshot()
	for ch := range s.watches {
		select {
		case <-ch:
		default:
		}
		select {
		case ch <- snap:
		default:
		}
	}
}

// SettingsToScanConfig converts stored settings to a ScanConfig.
func SettingsToScanConfig(s config.Settings) ScanConfig {
	cfg := DefaultScanConfig()

	switch s.ColorMode {
	case "color":
		cfg.ColorMode = ColorColor
	case "grayscale":
		cfg.ColorMode = ColorGray
	case "bw":
		cfg.ColorMode = ColorLineart
	}

	switch s.Source {
	case "flatbed":
		cfg.Source = SourceFlatbed
	case "adf":
		cfg.Source = SourceADF
	case "duplex":
		cfg.Source = SourceADFDuplex
	}

	cfg.Resolution = max(s.Resolution, 0)
	return cfg
}

// RunSaveJob executes a scan and saves the result to savePath: one PDF
// for all pages, or one image file per page.
func RunSaveJob(ctx context.Context, sc *Scanner, cfg ScanConfig, format string, savePath string) ([]Page, []string, error) {
	if err := os.MkdirAll(savePath, 0755); err != nil {
		return nil, nil, fmt.Errorf("create save directory: %w", err)
	}

	slog.Info("save job starting", "format", format, "savePath", savePath)
	pages, err := sc.Scan(ctx, cfg, nil)
	if err != nil {
		return pages, nil, fmt.Errorf("scan: %w", err)
	}
	if len(pages) == 0 {
		return nil, nil, fmt.Errorf("scan returned no pages")
	}

	timestamp := time.Now().Format("20060102_150405")

	if format == FormatPDF {
		outPath := filepath.Join(savePath, fmt.Sprintf("scan_%s.pdf", timestamp))
		if err := WritePDF(pages, cfg.Resolution, outPath); err != nil {
			return pages, nil, fmt.Errorf("write PDF: %w", err)
		}
		slog.Info("scan saved as PDF", "path", outPath, "pages", len(pages))
		return pages, []string{outPath}, nil
	}

	var files []string
	for i, p := range pages {
		outPath := filepath.Join(savePath, fmt.Sprintf("scan_%s_%03d.%s", timestamp, i+1, Extension(format)))
		if err := writePage(outPath, p, format); err != nil {
			return pages, files, fmt.Errorf("write page %d: %w", i+1, err)
		}
		files = append(files, outPath)
	}
	slog.Info("scan saved as individual files", "path", savePath, "pages", len(pages))
	return pages, files, nil
}

func writePage(path string, p Page, format string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := EncodePage(f, p, format); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// SaveJob runs RunSaveJob with the stored settings, recording progress in
// Status. At most one job runs at a time.
type SaveJob struct {
	Scanner  *Scanner
	Settings *config.Store
	Status   *ScanJobStatus
}

// Run scans with the current settings. It returns false without scanning
// when a job is already running.
func (j *SaveJob) Run(ctx context.Context, trigger string) bool {
	if !j.Status.TryStart(trigger) {
		slog.Info("scan already in progress, ignoring trigger", "trigger", trigger)
		return false
	}
	settings := j.Settings.Get()
	savePath := settings.SavePath
	if settings.SaveType != "local" || savePath == "" {
		savePath = filepath.Join(os.TempDir(), "airsane")
	}

	start := time.Now()
	pages, files, err := RunSaveJob(ctx, j.Scanner, SettingsToScanConfig(settings), settings.Format, savePath)
	if err == nil && settings.SaveType == "ftp" {
		err = UploadFTP(ctx, FTPTarget{
			Host:     settings.FTPHost,
			User:     settings.FTPUser,
			Password: settings.FTPPassword,
			Dir:      settings.FTPDir,
		}, files)
	}
	metrics.ObserveScan(trigger, start, err)
	if err != nil {
		slog.Error("save job failed", "trigger", trigger, "err", err)
	}
	j.Status.SetResult(err, pages, files)
	return true
}
