package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/OpenPrinting/go-mfp/proto/escl"
	"github.com/OpenPrinting/go-mfp/transport"
	"github.com/OpenPrinting/go-mfp/util/optional"
	"github.com/grandcat/zeroconf"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/mzyy94/airsane/internal/config"
	"github.com/mzyy94/airsane/internal/sane"
	"github.com/mzyy94/airsane/internal/scanner"
	"github.com/mzyy94/airsane/internal/webui"
)

func newServeCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the eSCL server",
		Long: `Open the scanner and serve it over eSCL, advertised with mDNS as
_uscan._tcp. The same port serves the settings API under /api/ and
Prometheus metrics under /metrics.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return runServe(ctx, a.cfg)
		},
	}
	flags := cmd.Flags()
	defaults := config.DefaultConfig()
	flags.Int("listen-port", defaults.ListenPort, "HTTP listen port")
	flags.String("service-name", "", "mDNS service name (default is the scanner model)")
	flags.String("data-dir", "", "directory for persisted settings (default keeps them in memory)")
	flags.Bool("mdns", defaults.MDNS, "advertise the scanner with mDNS")
	flags.Duration("button-poll-interval", defaults.ButtonPollInterval, "hardware button poll interval, 0 disables")

	_ = a.v.BindPFlag("listen_port", flags.Lookup("listen-port"))
	_ = a.v.BindPFlag("service_name", flags.Lookup("service-name"))
	_ = a.v.BindPFlag("data_dir", flags.Lookup("data-dir"))
	_ = a.v.BindPFlag("mdns", flags.Lookup("mdns"))
	_ = a.v.BindPFlag("button_poll_interval", flags.Lookup("button-poll-interval"))
	return cmd
}

// daemon is everything serve runs on top of an open scanner.
type daemon struct {
	scanner  *scanner.Scanner
	adapter  *scanner.ESCLAdapter
	settings *config.Store
	job      *scanner.SaveJob
}

func newDaemon(sc *scanner.Scanner, dataDir string) (*daemon, error) {
	adapter, err := scanner.NewESCLAdapter(sc)
	if err != nil {
		return nil, fmt.Errorf("scanner capabilities: %w", err)
	}
	settings := config.NewMemoryStore()
	if dataDir != "" {
		if settings, err = config.NewStore(dataDir); err != nil {
			return nil, fmt.Errorf("settings store: %w", err)
		}
	}
	return &daemon{
		scanner:  sc,
		adapter:  adapter,
		settings: settings,
		job:      &scanner.SaveJob{Scanner: sc, Settings: settings, Status: &scanner.ScanJobStatus{}},
	}, nil
}

// handler routes eSCL, the settings API and metrics.
func (d *daemon) handler(ctx context.Context, anchor sane.Anchor, localOnly bool) http.Handler {
	esclServer := escl.NewAbstractServer(escl.AbstractServerOptions{
		Scanner:  d.adapter,
		BasePath: "",
		Hooks: escl.ServerHooks{
			OnScannerStatusResponse: func(_ *transport.ServerQuery, status *escl.ScannerStatus) *escl.ScannerStatus {
				if !d.adapter.HasADF() {
					return nil
				}
				hasPaper, err := d.adapter.CheckADFStatus()
				if err != nil {
					slog.Debug("ADF status check failed", "err", err)
					return nil
				}
				if hasPaper {
					status.ADFState = optional.New(escl.ScannerAdfLoaded)
				} else {
					status.ADFState = optional.New(escl.ScannerAdfEmpty)
				}
				return status
			},
		},
	})

	mux := http.NewServeMux()
	mux.Handle("/api/", webui.NewHandler(webui.Options{
		Scanner:   d.scanner,
		Adapter:   d.adapter,
		Anchor:    anchor,
		LocalOnly: localOnly,
		Settings:  d.settings,
		Job:       d.job,
		Context:   ctx,
	}))
	mux.Handle("/metrics", promhttp.Handler())
	// Serve at /eSCL/ for clients using the rs TXT record (sane-airscan, macOS)
	mux.Handle("/eSCL/", http.StripPrefix("/eSCL", esclServer))
	// Also serve at root for clients that ignore rs (sane-escl)
	mux.Handle("/", esclServer)
	return logMiddleware(mux)
}

func runServe(ctx context.Context, cfg *config.Config) error {
	s, err := openSession(cfg)
	if err != nil {
		return err
	}
	defer s.Close()

	sc, err := s.connect(ctx, cfg.Device)
	if err != nil {
		return fmt.Errorf("scanner connection failed: %w", err)
	}
	defer sc.Disconnect()

	d, err := newDaemon(sc, cfg.DataDir)
	if err != nil {
		return err
	}

	serviceName := cfg.ServiceName
	if serviceName == "" {
		serviceName = sc.Name()
	}
	if serviceName == "" {
		serviceName = "AirSane"
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	addr := fmt.Sprintf(":%d", cfg.ListenPort)
	httpServer := &http.Server{
		Addr:              addr,
		Handler:           d.handler(ctx, s.anchor, cfg.LocalOnly),
		ReadHeaderTimeout: 10 * time.Second,
	}

	if cfg.MDNS {
		mdnsServer, err := zeroconf.Register(
			serviceName,
			"_uscan._tcp",
			"local.",
			cfg.ListenPort,
			d.adapter.TXTRecords(serviceName),
			nil,
		)
		if err != nil {
			return fmt.Errorf("mDNS registration failed: %w", err)
		}
		defer mdnsServer.Shutdown()
		slog.Info("mDNS registered", "name", serviceName, "service", "_uscan._tcp")
	}

	var poller *scanner.ButtonPoller
	if cfg.ButtonPollInterval > 0 {
		poller = scanner.NewButtonPoller(sc, cfg.ButtonPollInterval, func() {
			go d.job.Run(ctx, "button")
		})
		poller.Start(ctx)
	}

	go func() {
		slog.Info("eSCL server starting", "addr", addr, "device", sc.DeviceName())
		if err := httpServer.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			slog.Error("HTTP server error", "err", err)
			cancel()
		}
	}()

	<-ctx.Done()
	slog.Info("shutting down...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		slog.Error("HTTP shutdown error", "err", err)
	}
	if poller != nil {
		poller.Wait()
	}

	slog.Info("shutdown complete")
	return nil
}

// responseRecorder captures the status code for logging.
type responseRecorder struct {
	http.ResponseWriter
	status int
}

func (r *responseRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (r *responseRecorder) Unwrap() http.ResponseWriter {
	return r.ResponseWriter
}

// Hijack hands the connection to the websocket upgrader.
func (r *responseRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	r.status = http.StatusSwitchingProtocols
	return http.NewResponseController(r.ResponseWriter).Hijack()
}

func logMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec := &responseRecorder{ResponseWriter: w, status: 200}
		start := time.Now()
		next.ServeHTTP(rec, r)
		slog.Info("http",
			"method", r.Method,
			"path", r.URL.Path,
			"status", rec.status,
			"remote", r.RemoteAddr,
			"duration", time.Since(start).Round(time.Millisecond),
		)
	})
}
