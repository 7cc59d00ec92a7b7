package handlers

import (
	"net/http"

	"github.com/MrSnakeDoc/beacon/internal/httpserver/deps"
	"github.com/MrSnakeDoc/beacon/internal/logger"
)

// Refresh queues a background reconcile pass.
func Refresh(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if d.Refresher != nil && d.Refresher.Trigger() {
			d.Logger.Info("manual refresh triggered via endpoint",
				logger.String("remote_ip", r.RemoteAddr))
			w.WriteHeader(http.StatusAccepted)
			if _, err := w.Write([]byte("✅ Refresh triggered successfully\n")); err != nil {
				d.Logger.Debug("failed to write response", logger.Error(err))
			}
			return
		}

		d.Logger.Warn("refresh already pending",
			logger.String("remote_ip", r.RemoteAddr))
		w.WriteHeader(http.StatusTooManyRequests)
		if _, err := w.Write([]byte("⏳ Refresh already pending, please wait\n")); err != nil {
			d.Logger.Debug("failed to write response", logger.Error(err))
		}
	}
}
