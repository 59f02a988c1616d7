package server

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/streamnest/go-vod-cache/internal/catalog"
)

// APIResponse represents a standard API response structure.
type APIResponse struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
	Message string      `json:"message,omitempty"`
}

// CategoryResponse is the payload for category load and load-more requests.
type CategoryResponse struct {
	Category string              `json:"category"`
	Items    []catalog.MediaItem `json:"items"`
	HasMore  bool                `json:"has_more"`
}

// CatalogSummary reports how much of the catalog is currently resident.
type CatalogSummary struct {
	Categories          map[string]int `json:"categories"`
	TotalItems          int            `json:"total_items"`
	BackgroundLoading   bool           `json:"background_loading"`
	InitialPassComplete bool           `json:"initial_pass_complete"`
}

// handleHealth provides a simple health check endpoint.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSONResponse(w, http.StatusOK, APIResponse{
		Success: true,
		Message: "Server is healthy",
	})
}

// handleCategory returns a category's items, fetching page 1 on first access.
func (s *Server) handleCategory(w http.ResponseWriter, r *http.Request) {
	category := chi.URLParam(r, "id")

	items := s.cache.LoadCategory(r.Context(), category)
	hasMore := s.cache.HasMore(category)

	s.writeJSONResponse(w, http.StatusOK, APIResponse{
		Success: true,
		Data: CategoryResponse{
			Category: category,
			Items:    items,
			HasMore:  hasMore,
		},
	})
}

// handleLoadMore fetches a category's next page and returns the merged list.
func (s *Server) handleLoadMore(w http.ResponseWriter, r *http.Request) {
	category := chi.URLParam(r, "id")

	items, hasMore := s.cache.LoadMore(r.Context(), category)

	s.writeJSONResponse(w, http.StatusOK, APIResponse{
		Success: true,
		Data: CategoryResponse{
			Category: category,
			Items:    items,
			HasMore:  hasMore,
		},
	})
}

// handleSearch runs a substring search over the resident catalog. The scan
// runs off the handler's path via the cache's async surface.
func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get("q")

	items := <-s.cache.SearchAsync(query)
	if items == nil {
		items = []catalog.MediaItem{}
	}

	s.writeJSONResponse(w, http.StatusOK, APIResponse{
		Success: true,
		Data:    items,
	})
}

// handleCatalog returns per-category item counts and loader state.
func (s *Server) handleCatalog(w http.ResponseWriter, r *http.Request) {
	s.writeJSONResponse(w, http.StatusOK, APIResponse{
		Success: true,
		Data:    s.catalogSummary(),
	})
}

// handleLoaderStart launches the background deep-load. Page notifications
// feed the WebSocket broadcast. Returns 409 if a deep-load is already
// running.
func (s *Server) handleLoaderStart(w http.ResponseWriter, r *http.Request) {
	// The loop must outlive the request, so it gets its own context.
	err := s.cache.StartBackgroundLoad(context.Background(), func() {
		s.BroadcastCatalogUpdate(CatalogUpdate{
			Type:    "catalog",
			Status:  "loading",
			Message: "New catalog data available",
		})
	})
	if err != nil {
		s.writeErrorResponse(w, http.StatusConflict, "Deep load already running", err)
		return
	}

	s.writeJSONResponse(w, http.StatusOK, APIResponse{
		Success: true,
		Message: "Deep load started",
	})
}

// handleLoaderStop cancels the background deep-load and waits for it to exit.
func (s *Server) handleLoaderStop(w http.ResponseWriter, r *http.Request) {
	s.cache.StopBackgroundLoad()

	s.writeJSONResponse(w, http.StatusOK, APIResponse{
		Success: true,
		Message: "Deep load stopped",
	})
}

// handleCacheClear drops the in-memory index and persisted snapshots.
func (s *Server) handleCacheClear(w http.ResponseWriter, r *http.Request) {
	if err := s.cache.ClearAllCaches(); err != nil {
		s.writeErrorResponse(w, http.StatusInternalServerError, "Failed to clear caches", err)
		return
	}

	s.writeJSONResponse(w, http.StatusOK, APIResponse{
		Success: true,
		Message: "All caches cleared",
	})
}

// catalogSummary builds the current resident-catalog summary.
func (s *Server) catalogSummary() CatalogSummary {
	summary := CatalogSummary{
		Categories:          make(map[string]int),
		BackgroundLoading:   s.cache.BackgroundLoading(),
		InitialPassComplete: s.cache.InitialPassComplete(),
	}

	for category, items := range s.cache.GetAllLoaded() {
		summary.Categories[category] = len(items)
		summary.TotalItems += len(items)
	}

	return summary
}

// writeJSONResponse writes a JSON response with the given status code.
func (s *Server) writeJSONResponse(w http.ResponseWriter, status int, response APIResponse) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(response); err != nil {
		s.logger.Error("Failed to encode JSON response", "error", err)
	}
}

// writeErrorResponse writes an error response and logs the underlying cause.
func (s *Server) writeErrorResponse(w http.ResponseWriter, status int, message string, err error) {
	s.logger.Error(message, "status", status, "error", err)

	s.writeJSONResponse(w, status, APIResponse{
		Success: false,
		Error:   message,
	})
}
