package stream

import (
	"encoding/json"
	"net/http"

	"go.uber.org/zap"

	"github.com/sanspareilsmyn/featurestream/internal/dsp"
)

// StateHandler serves the pipeline's state summary as JSON.
func StateHandler(pipeline *dsp.Pipeline, logger *zap.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			w.Header().Set("Allow", http.MethodGet)
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(pipeline.ListState()); err != nil {
			logger.Warn("Failed to write state summary", zap.Error(err))
		}
	})
}
