package server

import (
	"embed"
	"net/http"
)

//go:embed dashboard/index.html
var dashboardFS embed.FS

// dashboardHandler serves the embedded single-page operator console.
func (s *AtriumAPIServer) dashboardHandler(res http.ResponseWriter, _ *http.Request) {
	page, err := dashboardFS.ReadFile("dashboard/index.html")
	if err != nil {
		http.Error(res, "dashboard page unavailable", http.StatusInternalServerError)
		return
	}
	res.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = res.Write(page)
}
