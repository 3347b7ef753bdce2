package handlers

import "net/http"

// MetricsHandler serves the Prometheus scrape endpoint.
func (a *App) MetricsHandler(w http.ResponseWriter, r *http.Request) {
	if a.Metrics == nil {
		a.error(w, http.StatusNotFound, "not_found", "metrics disabled")
		return
	}
	a.Metrics.ServeHTTP(w, r)
}
