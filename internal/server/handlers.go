package server

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/dokoapp/doko/internal/assets"
	"github.com/dokoapp/doko/internal/ingest"
	"github.com/dokoapp/doko/internal/models"
	"github.com/dokoapp/doko/internal/storage"
)

// maxUploadBytes caps a multipart ingest request.
const maxUploadBytes = 128 << 20

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	var query models.SearchQuery
	if err := json.NewDecoder(r.Body).Decode(&query); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	s.logger.Debug("search request", zap.String("query", query.Query), zap.Int("k", query.K))
	response, err := s.engine.Search(r.Context(), &query)
	if err != nil {
		if errors.Is(err, models.ErrInvalidQuery) {
			s.respondError(w, http.StatusBadRequest, err.Error())
			return
		}
		s.logger.Error("search failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.respondJSON(w, http.StatusOK, response)
}

func (s *Server) handleCreateContainer(w http.ResponseWriter, r *http.Request) {
	var input models.ContainerInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	container, err := s.service.CreateContainer(r.Context(), &input)
	if err != nil {
		s.respondStorageError(w, err)
		return
	}
	s.respondJSON(w, http.StatusCreated, container)
}

func (s *Server) handleListContainers(w http.ResponseWriter, r *http.Request) {
	containers, err := s.service.ListContainers(r.Context())
	if err != nil {
		s.respondStorageError(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{"containers": containers})
}

type containerUpdateRequest struct {
	Name     string `json:"name"`
	Location string `json:"location"`
	ParentID string `json:"parent_id"`
}

func (s *Server) handleUpdateContainer(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var req containerUpdateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	current, err := s.service.GetContainer(r.Context(), id)
	if err != nil {
		s.respondStorageError(w, err)
		return
	}
	if req.Name == "" {
		req.Name = current.Name
	}
	container, err := s.service.UpdateContainer(r.Context(), id, req.Name, req.Location, req.ParentID)
	if err != nil {
		s.respondStorageError(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, container)
}

func (s *Server) handleDeleteContainer(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := s.service.DeleteContainer(r.Context(), id); err != nil {
		s.respondStorageError(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

func (s *Server) handleListContainerItems(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if _, err := s.service.GetContainer(r.Context(), id); err != nil {
		s.respondStorageError(w, err)
		return
	}
	items, err := s.service.ListItems(r.Context(), id)
	if err != nil {
		s.respondStorageError(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{"items": items})
}

// handleIngest accepts multipart photos under the "photos" field and returns
// one outcome per photo, in upload order.
func (s *Server) handleIngest(w http.ResponseWriter, r *http.Request) {
	containerID := chi.URLParam(r, "id")
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid multipart body")
		return
	}
	files := r.MultipartForm.File["photos"]
	if len(files) == 0 {
		s.respondError(w, http.StatusBadRequest, "no photos uploaded")
		return
	}

	photos := make([]ingest.Photo, 0, len(files))
	for _, header := range files {
		file, err := header.Open()
		if err != nil {
			s.respondError(w, http.StatusBadRequest, "failed to read upload")
			return
		}
		data, err := io.ReadAll(file)
		file.Close()
		if err != nil {
			s.respondError(w, http.StatusBadRequest, "failed to read upload")
			return
		}
		photos = append(photos, ingest.Photo{Source: header.Filename, Data: data})
	}

	outcomes, err := s.coordinator.IngestBatch(r.Context(), "upload", containerID, photos)
	if err != nil {
		s.respondStorageError(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{"outcomes": outcomes})
}

func (s *Server) handleBrowseItems(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get("q")
	if query == "" {
		s.respondError(w, http.StatusBadRequest, "q is required")
		return
	}
	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			limit = n
		}
	}
	items, err := s.service.Browse(r.Context(), query, limit)
	if err != nil {
		s.logger.Error("browse failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{"items": items})
}

func (s *Server) handleGetItem(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	item, err := s.service.GetItem(r.Context(), id)
	if err != nil {
		s.respondStorageError(w, err)
		return
	}
	path, err := s.service.ContainerPath(r.Context(), item.ContainerID)
	if err != nil {
		path = nil
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{"item": item, "container_path": path})
}

type moveRequest struct {
	ContainerID string `json:"container_id"`
}

func (s *Server) handleMoveItem(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var req moveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.ContainerID == "" {
		s.respondError(w, http.StatusBadRequest, "container_id is required")
		return
	}
	if err := s.service.MoveItem(r.Context(), id, req.ContainerID); err != nil {
		s.respondStorageError(w, err)
		return
	}
	item, err := s.service.GetItem(r.Context(), id)
	if err != nil {
		s.respondStorageError(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, item)
}

type editRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

func (s *Server) handleEditItem(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var req editRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Name == "" && req.Description == "" {
		s.respondError(w, http.StatusBadRequest, "name or description is required")
		return
	}
	current, err := s.service.GetItem(r.Context(), id)
	if err != nil {
		s.respondStorageError(w, err)
		return
	}
	if req.Name == "" {
		req.Name = current.Name
	}
	if req.Description == "" {
		req.Description = current.Description
	}
	item, err := s.service.EditItem(r.Context(), id, req.Name, req.Description)
	if err != nil {
		s.respondStorageError(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, item)
}

func (s *Server) handleDeleteItem(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := s.service.RemoveItem(r.Context(), id); err != nil {
		s.respondStorageError(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

func (s *Server) handleGetItemImage(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	item, err := s.service.GetItem(r.Context(), id)
	if err != nil {
		s.respondStorageError(w, err)
		return
	}
	if item.ImageRef == "" {
		s.respondError(w, http.StatusNotFound, "item has no image")
		return
	}
	data, err := s.assets.Get(item.ImageRef)
	if err != nil {
		if errors.Is(err, assets.ErrNotFound) {
			s.respondError(w, http.StatusNotFound, "image not found")
			return
		}
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	w.Header().Set("Content-Type", http.DetectContentType(data))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

func (s *Server) handleListImports(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			limit = n
		}
	}
	imports, err := s.store.ListImports(r.Context(), limit)
	if err != nil {
		s.respondStorageError(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{"imports": imports})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	stats, err := s.service.Stats(r.Context())
	if err != nil {
		s.logger.Error("status failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	resp := map[string]interface{}{
		"containers":           stats.Containers,
		"items":                stats.Items,
		"vectors":              stats.Vectors,
		"vector_index_size":    stats.IndexSize,
		"embedding_cache_size": stats.CacheSize,
	}
	configInfo := map[string]interface{}{
		"embedding_model":      s.config.Embedding.Model,
		"embedding_dimensions": s.config.Embedding.Dimensions,
		"caption_model":        s.config.Caption.Model,
		"database_path":        s.config.Storage.DatabasePath,
	}
	diskBytes, err := storage.DiskUsageBytes(
		s.config.Storage.DatabasePath,
		s.config.Storage.AssetsPath,
		s.config.Storage.BrowseIndexPath,
	)
	if err == nil {
		resp["disk_usage_bytes"] = diskBytes
	}
	resp["config"] = configInfo
	s.respondJSON(w, http.StatusOK, resp)
}

// respondStorageError maps storage sentinel errors to HTTP statuses.
func (s *Server) respondStorageError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, storage.ErrNotFound):
		s.respondError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, storage.ErrNotEmpty), errors.Is(err, storage.ErrCycleDetected):
		s.respondError(w, http.StatusConflict, err.Error())
	case errors.Is(err, storage.ErrInvalidInput):
		s.respondError(w, http.StatusBadRequest, err.Error())
	default:
		s.logger.Error("request failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
	}
}

func (s *Server) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func (s *Server) respondError(w http.ResponseWriter, status int, message string) {
	s.respondJSON(w, status, map[string]string{"error": message})
}
