package webui

import (
	"image/png"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/disintegration/imaging"
)

const (
	defaultPreviewSize = 320
	maxPreviewSize     = 2048
)

// handlePreview serves a PNG thumbnail of the last scanned page. The
// optional size parameter bounds both dimensions.
func (h *handler) handlePreview(w http.ResponseWriter, r *http.Request) {
	if h.opts.Job == nil {
		http.NotFound(w, r)
		return
	}
	page, ok := h.opts.Job.Status.LastPage()
	if !ok {
		http.Error(w, "no scan yet", http.StatusNotFound)
		return
	}

	size := defaultPreviewSize
	if s := r.URL.Query().Get("size"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n <= 0 || n > maxPreviewSize {
			http.Error(w, "invalid size", http.StatusBadRequest)
			return
		}
		size = n
	}

	img, err := page.Image.Image()
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	thumb := imaging.Fit(img, size, size, imaging.Lanczos)

	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "no-store")
	if err := png.Encode(w, thumb); err != nil {
		slog.Debug("preview write failed", "err", err)
	}
}
