package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/mzyy94/airsane/internal/metrics"
	"github.com/mzyy94/airsane/internal/scanner"
)

type scanFlags struct {
	output     string
	mode       string
	source     string
	resolution int
	area       []float64
}

func newScanCmd(a *app) *cobra.Command {
	var f scanFlags
	cmd := &cobra.Command{
		Use:   "scan",
		Short: "Scan to a file",
		Long: `Scan one or more pages and write them to --output. The format follows
the file extension: .pdf collects all pages in one file, .png, .jpg and
.tiff write one file per page with a page number suffix when the feeder
returns more than one.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return runScan(ctx, a, f)
		},
	}
	flags := cmd.Flags()
	flags.StringVarP(&f.output, "output", "o", "", "output file (.pdf, .png, .jpg, .tiff)")
	flags.StringVarP(&f.mode, "mode", "m", "auto", "color mode (auto, color, gray, bw)")
	flags.StringVarP(&f.source, "source", "s", "auto", "paper source (auto, flatbed, adf, duplex)")
	flags.IntVarP(&f.resolution, "resolution", "r", 0, "resolution in dpi (0 keeps the device setting)")
	flags.Float64SliceVar(&f.area, "area", nil, "scan area in mm as x,y,width,height")
	_ = cmd.MarkFlagRequired("output")
	return cmd
}

func (f scanFlags) config() (scanner.ScanConfig, error) {
	cfg := scanner.DefaultScanConfig()
	var err error
	if cfg.ColorMode, err = scanner.ParseColorMode(f.mode); err != nil {
		return cfg, err
	}
	if cfg.Source, err = scanner.ParseSource(f.source); err != nil {
		return cfg, err
	}
	if f.resolution < 0 {
		return cfg, fmt.Errorf("invalid resolution %d", f.resolution)
	}
	cfg.Resolution = f.resolution
	switch len(f.area) {
	case 0:
	case 4:
		cfg.Area = &scanner.Area{X: f.area[0], Y: f.area[1], Width: f.area[2], Height: f.area[3]}
	default:
		return cfg, fmt.Errorf("--area takes 4 values, got %d", len(f.area))
	}
	return cfg, nil
}

func runScan(ctx context.Context, a *app, f scanFlags) error {
	format, err := scanner.FormatForPath(f.output)
	if err != nil {
		return err
	}
	cfg, err := f.config()
	if err != nil {
		return err
	}

	s, err := openSession(a.cfg)
	if err != nil {
		return err
	}
	defer s.Close()

	sc, err := s.connect(ctx, a.cfg.Device)
	if err != nil {
		return err
	}
	defer sc.Disconnect()

	slog.Info("scanning", "device", sc.DeviceName(), "config", cfg.String())
	start := time.Now()
	pages, err := sc.Scan(ctx, cfg, nil)
	metrics.ObserveScan("cli", start, err)
	if err != nil {
		return err
	}

	if format == scanner.FormatPDF {
		if err := scanner.WritePDF(pages, cfg.Resolution, f.output); err != nil {
			return err
		}
		slog.Info("scan saved", "path", f.output, "pages", len(pages))
		return nil
	}
	for i, p := range pages {
		path := f.output
		if len(pages) > 1 {
			path = pagePath(f.output, i)
		}
		if err := writePageFile(path, p, format); err != nil {
			return fmt.Errorf("write page %d: %w", i+1, err)
		}
		slog.Info("scan saved", "path", path)
	}
	return nil
}

// pagePath inserts a page number before the extension of path.
func pagePath(path string, index int) string {
	ext := filepath.Ext(path)
	return fmt.Sprintf("%s_%03d%s", strings.TrimSuffix(path, ext), index+1, ext)
}

func writePageFile(path string, p scanner.Page, format string) error {
	out, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := scanner.EncodePage(out, p, format); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}
