package main

import (
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/harveysanders/picosweep/sweeper/colorhttp"
	"github.com/harveysanders/picosweep/sweeper/led"
	"github.com/harveysanders/picosweep/sweeper/radio"
)

const maxBodyBytes = 64

// newMux serves the same routes as the board plus health and metrics.
func newMux(leds *led.RGB, sweeper *radio.Sweeper, gatherer prometheus.Gatherer, metricsPath string, logger *slog.Logger) *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /{$}", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("Hello from picosweep simulator"))
	})

	mux.HandleFunc("POST /color", func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
		if err != nil {
			http.Error(w, "read body failed", http.StatusBadRequest)
			return
		}
		c, err := colorhttp.Apply(leds, body)
		if err != nil {
			if errors.Is(err, led.ErrInvalidColor) {
				logger.Warn("http:bad color", slog.String("body", string(body)))
				http.Error(w, err.Error(), http.StatusBadRequest)
				return
			}
			logger.Error("http:set color failed", slog.String("err", err.Error()))
			http.Error(w, "led write failed", http.StatusInternalServerError)
			return
		}
		logger.Info("http:color set", slog.String("color", c.Hex()))
		w.Write([]byte("Color set"))
	})

	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		if sweeper.State() == radio.StateFailed {
			http.Error(w, "radio "+sweeper.State().String(), http.StatusServiceUnavailable)
			return
		}
		w.Write([]byte("OK"))
	})

	mux.Handle("GET "+metricsPath, promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	return mux
}
