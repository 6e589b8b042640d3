package main

import (
	"bytes"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/fogleman/gg"
)

// Panel geometry of the SSD1306 the knob was built around.
const (
	displayW = 128
	displayH = 64
)

// formatHz renders a frequency the way a dial shows it: 7.074.000
func formatHz(hz int64) string {
	if hz < 0 {
		return "-" + formatHz(-hz)
	}
	s := fmt.Sprintf("%d", hz)
	var b []byte
	for i := range len(s) {
		if i > 0 && (len(s)-i)%3 == 0 {
			b = append(b, '.')
		}
		b = append(b, s[i])
	}
	return string(b)
}

// renderDisplay draws the panel for a snapshot.
func renderDisplay(s StateSnapshot) *gg.Context {
	dc := gg.NewContext(displayW, displayH)
	dc.SetRGB(0, 0, 0)
	dc.Clear()

	dc.SetRGB(1, 1, 1)
	dc.DrawStringAnchored(formatHz(s.FrequencyHz), displayW/2, 24, 0.5, 0.5)

	band := s.Band
	if band == "" {
		band = "VFO"
	}
	dc.DrawString(band, 2, 10)
	dc.DrawString("step "+formatHz(s.StepHz), 2, 60)

	// Direction of the last turn.
	switch s.LastDirection {
	case "cw":
		dc.DrawRegularPolygon(3, displayW-10, 6, 5, 0)
	case "ccw":
		dc.DrawRegularPolygon(3, displayW-10, 6, 5, gg.Radians(180))
	}
	dc.Fill()

	if s.Transmitting {
		dc.SetRGB(1, 0.2, 0)
		dc.DrawRectangle(displayW-28, 48, 26, 14)
		dc.Fill()
		dc.SetRGB(0, 0, 0)
		dc.DrawStringAnchored("TX", displayW-15, 55, 0.5, 0.5)
	}
	return dc
}

// displayHandler serves the panel as PNG, rendered from a fresh snapshot.
func displayHandler(events chan<- Event, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		snap, err := requestSnapshot(r.Context(), events)
		if err != nil {
			logger.Warn("display snapshot failed", "error", err)
			http.Error(w, "state unavailable", http.StatusServiceUnavailable)
			return
		}

		dc := renderDisplay(snap)
		var buf bytes.Buffer
		if err := dc.EncodePNG(&buf); err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "image/png")
		w.Header().Set("Cache-Control", "no-store")
		_, _ = w.Write(buf.Bytes())
	}
}
