package health

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/SerAbin1/order-tracking-system/internal/service/services/healthsvc"
)

// service is an interface for the service layer.
type service interface {
	Check(ctx context.Context) healthsvc.Report
}

// Health reports aggregate liveness. Degraded dependencies map to 503 so
// operators see the system fail before it becomes fully unavailable.
func Health(w http.ResponseWriter, r *http.Request, service service) {
	report := service.Check(r.Context())

	status := http.StatusOK
	if !report.Healthy() {
		status = http.StatusServiceUnavailable
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(report); err != nil {
		slog.Error("Error writing health response", "error", err)
	}
}
