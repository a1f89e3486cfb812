package handlers

import (
	"encoding/json"
	"net/http"
	"os"
)

// Health returns a simple JSON payload to indicate the API is alive.
// GET /healthz
func Health(w http.ResponseWriter, r *http.Request) {
	version := os.Getenv("SERVICE_VERSION")
	if version == "" {
		version = "dev"
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(map[string]string{"status": "ok", "version": version})
}
