package main

import (
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/mzyy94/airsane/internal/config"
	"github.com/mzyy94/airsane/internal/version"
)

// app carries the configuration shared by all subcommands.
type app struct {
	v       *viper.Viper
	cfgFile string
	cfg     *config.Config
	logOut  io.Writer
}

func newRootCmd() *cobra.Command {
	a := &app{v: viper.New(), logOut: os.Stderr}

	root := &cobra.Command{
		Use:   "airsane",
		Short: "Expose SANE scanners over eSCL",
		Long: `airsane talks to scanners through libsane and publishes them to
AirScan/eSCL clients on the local network.

Examples:
  airsane devices
  airsane options --device 'epson2:net:192.168.1.20'
  airsane scan --output page.pdf --mode gray --resolution 300
  airsane serve --listen-port 8080`,
		Version:       version.String(),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.load()
		},
	}

	flags := root.PersistentFlags()
	flags.StringVar(&a.cfgFile, "config", "", "config file (default is airsane.yaml in ., ~/.config/airsane, /etc/airsane)")
	flags.String("backend", config.DefaultConfig().Backend, "scanner backend (libsane, mock)")
	flags.String("device", "", "device name (default is the first device found)")
	flags.String("log-level", "info", "log level (debug, info, warn, error)")
	flags.BoolP("verbose", "v", false, "verbose output (equivalent to --log-level=debug)")
	flags.Bool("local-only", false, "skip network devices when listing")

	_ = a.v.BindPFlag("backend", flags.Lookup("backend"))
	_ = a.v.BindPFlag("device", flags.Lookup("device"))
	_ = a.v.BindPFlag("log_level", flags.Lookup("log-level"))
	_ = a.v.BindPFlag("verbose", flags.Lookup("verbose"))
	_ = a.v.BindPFlag("local_only", flags.Lookup("local-only"))

	root.AddCommand(
		newDevicesCmd(a),
		newOptionsCmd(a),
		newScanCmd(a),
		newServeCmd(a),
		newVersionCmd(),
	)
	return root
}

func (a *app) load() error {
	cfg, err := config.NewLoader(a.v).Load(a.cfgFile)
	if err != nil {
		return err
	}
	a.cfg = cfg

	level := parseLogLevel(cfg.LogLevel)
	if cfg.Verbose {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(a.logOut, &slog.HandlerOptions{Level: level})))
	if used := a.v.ConfigFileUsed(); used != "" {
		slog.Debug("config loaded", "path", used)
	}
	return nil
}

func parseLogLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			_, err := io.WriteString(cmd.OutOrStdout(), "airsane "+version.String()+"\n")
			return err
		},
	}
}
