package handler

import "net/http"

// HealthBody is the fixed liveness response.
const HealthBody = "Hello, World!"

// HandleHealth is the liveness probe. It never touches the upstream.
func HandleHealth(w http.ResponseWriter, r *http.Request) {
	writeText(w, http.StatusOK, HealthBody)
}
