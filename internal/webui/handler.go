package webui

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/mzyy94/airsane/internal/config"
	"github.com/mzyy94/airsane/internal/sane"
	"github.com/mzyy94/airsane/internal/scanner"
)

// Options configure NewHandler.
type Options struct {
	Scanner *scanner.Scanner
	// Adapter is nil when the eSCL server is not running.
	Adapter *scanner.ESCLAdapter
	// Anchor is used to list devices.
	Anchor    sane.Anchor
	LocalOnly bool
	Settings  *config.Store
	Job       *scanner.SaveJob
	// Context bounds scans started through the API.
	Context context.Context
}

type handler struct {
	opts Options
}

// NewHandler creates an HTTP handler for the Web UI API.
func NewHandler(opts Options) http.Handler {
	if opts.Context == nil {
		opts.Context = context.Background()
	}
	h := &handler{opts: opts}
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/status", h.handleStatus)
	mux.HandleFunc("GET /api/settings", h.handleGetSettings)
	mux.HandleFunc("PUT /api/settings", h.handlePutSettings)
	mux.HandleFunc("GET /api/devices", h.handleDevices)
	mux.HandleFunc("POST /api/scan", h.handleScan)
	mux.HandleFunc("GET /api/preview", h.handlePreview)
	mux.HandleFunc("GET /api/events", h.handleEvents)
	return mux
}

type statusResponse struct {
	Online    bool              `json:"online"`
	State     string            `json:"state"`
	ADF       *adfStatus        `json:"adf,omitempty"`
	Device    deviceInfo        `json:"device"`
	Caps      *capsInfo         `json:"capabilities,omitempty"`
	Job       scanner.JobStatus `json:"job"`
	ESCLUrl   string            `json:"esclUrl,omitempty"`
	UpdatedAt string            `json:"updatedAt"`
}

type adfStatus struct {
	Loaded bool `json:"loaded"`
}

type deviceInfo struct {
	Name         string `json:"name"`
	Device       string `json:"device"`
	Model        string `json:"model"`
	Manufacturer string `json:"manufacturer"`
}

type capsInfo struct {
	Resolutions []int    `json:"resolutions"`
	ColorModes  []string `json:"colorModes"`
	Sources     []string `json:"sources"`
	Duplex      bool     `json:"duplex"`
	Formats     []string `json:"formats"`
}

var colorModeNames = map[scanner.ColorMode]string{
	scanner.ColorColor:   "color",
	scanner.ColorGray:    "grayscale",
	scanner.ColorLineart: "bw",
}

var sourceNames = map[scanner.Source]string{
	scanner.SourceFlatbed:   "flatbed",
	scanner.SourceADF:       "adf",
	scanner.SourceADFDuplex: "duplex",
}

func (h *handler) handleStatus(w http.ResponseWriter, r *http.Request) {
	sc := h.opts.Scanner
	online := sc.Online()
	state := "idle"
	switch {
	case !online:
		state = "offline"
	case sc.Scanning():
		state = "scanning"
	}

	resp := statusResponse{
		Online: online,
		State:  state,
		Device: deviceInfo{
			Name:         sc.Name(),
			Device:       sc.DeviceName(),
			Model:        sc.Model(),
			Manufacturer: sc.Vendor(),
		},
		UpdatedAt: time.Now().UTC().Format(time.RFC3339),
	}
	if h.opts.Job != nil {
		resp.Job = h.opts.Job.Status.Snapshot()
	}

	if state == "idle" {
		if h.opts.Adapter != nil && h.opts.Adapter.HasADF() {
			if hasPaper, err := h.opts.Adapter.CheckADFStatus(); err == nil {
				resp.ADF = &adfStatus{Loaded: hasPaper}
			}
		}
		if caps, err := sc.Capabilities(); err == nil {
			info := &capsInfo{
				Resolutions: caps.Resolutions,
				Duplex:      caps.HasSource(scanner.SourceADFDuplex),
				Formats:     []string{scanner.FormatPDF, scanner.FormatPNG, scanner.FormatJPEG, scanner.FormatTIFF},
			}
			for _, m := range caps.ColorModes {
				info.ColorModes = append(info.ColorModes, colorModeNames[m])
			}
			for _, s := range caps.Sources {
				info.Sources = append(info.Sources, sourceNames[s])
			}
			resp.Caps = info
		}
	}

	if h.opts.Adapter != nil {
		resp.ESCLUrl = "http://" + r.Host + "/eSCL"
	}

	writeJSON(w, http.StatusOK, resp)
}

// --- Settings API ---

func (h *handler) handleGetSettings(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.opts.Settings.Get())
}

func (h *handler) handlePutSettings(w http.ResponseWriter, r *http.Request) {
	s := config.DefaultSettings()
	if err := json.NewDecoder(r.Body).Decode(&s); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if err := s.Validate(); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if err := h.opts.Settings.Update(s); err != nil {
		slog.Warn("settings save failed", "err", err)
		http.Error(w, "failed to save settings", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, s)
}

// --- Devices API ---

type deviceEntry struct {
	Name   string `json:"name"`
	Vendor string `json:"vendor"`
	Model  string `json:"model"`
	Type   string `json:"type"`
}

func (h *handler) handleDevices(w http.ResponseWriter, r *http.Request) {
	if h.opts.Scanner.Scanning() {
		http.Error(w, "scan in progress", http.StatusConflict)
		return
	}
	list, err := sane.Devices(h.opts.Anchor, h.opts.LocalOnly)
	if err != nil {
		slog.Warn("device listing failed", "err", err)
		http.Error(w, err.Error(), http.StatusBadGateway)
		return
	}
	out := make([]deviceEntry, 0, len(list))
	for _, d := range list {
		out = append(out, deviceEntry{
			Name:   d.Name.String(),
			Vendor: d.Vendor.String(),
			Model:  d.Model.String(),
			Type:   d.Type.String(),
		})
	}
	writeJSON(w, http.StatusOK, out)
}

// --- Scan API ---

func (h *handler) handleScan(w http.ResponseWriter, r *http.Request) {
	if h.opts.Job == nil {
		http.Error(w, "scanning is not enabled", http.StatusNotImplemented)
		return
	}
	if h.opts.Job.Status.Snapshot().Scanning {
		http.Error(w, "scan in progress", http.StatusConflict)
		return
	}
	go h.opts.Job.Run(h.opts.Context, "web")
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "started"})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Debug("write response failed", "err", err)
	}
}
