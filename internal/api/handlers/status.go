package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/amaumene/reconarr/internal/scanner"
	"github.com/sirupsen/logrus"
)

// StatusHandler reports the run state of every registered scanner. This is
// the only window operators have into in-flight scans.
type StatusHandler struct {
	scanners []scanner.Runnable
	logger   *logrus.Logger
}

// NewStatusHandler creates a new status handler
func NewStatusHandler(scanners []scanner.Runnable, logger *logrus.Logger) *StatusHandler {
	return &StatusHandler{
		scanners: scanners,
		logger:   logger,
	}
}

// ScannerStatus is one scanner's entry in the status response
type ScannerStatus struct {
	Name string `json:"name"`
	scanner.StatusBase
}

// ServeHTTP handles the status endpoint
func (h *StatusHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	response := make([]ScannerStatus, 0, len(h.scanners))
	for _, s := range h.scanners {
		response = append(response, ScannerStatus{
			Name:       s.Name(),
			StatusBase: s.Status(),
		})
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(response)
}
