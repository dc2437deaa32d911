package handlers

import (
	"net/http"
	"os"
	"path/filepath"

	"narrative-agent/config"
	"narrative-agent/database"
	apperrors "narrative-agent/errors"
	"narrative-agent/graph"
	"narrative-agent/pipeline"
	"narrative-agent/utils"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

type ExtractHandler struct {
	pipeline *pipeline.Pipeline
	store    *database.PostgresStore
	graph    *graph.Graph
	cfg      *config.Config
	logger   *zap.Logger
}

func NewExtractHandler(pipe *pipeline.Pipeline, store *database.PostgresStore, relGraph *graph.Graph, cfg *config.Config, logger *zap.Logger) *ExtractHandler {
	return &ExtractHandler{
		pipeline: pipe,
		store:    store,
		graph:    relGraph,
		cfg:      cfg,
		logger:   logger,
	}
}

func (h *ExtractHandler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// ExtractDocument accepts a multipart upload, runs the full chunk-and-fold
// extraction synchronously, and returns the merged state. Extraction of a
// long document can take minutes; callers own their timeout.
func (h *ExtractHandler) ExtractDocument(c *gin.Context) {
	fileHeader, err := c.FormFile("file")
	if err != nil {
		respondWithClientError(c, http.StatusBadRequest, "missing file upload")
		return
	}

	filename := utils.SanitizeFilename(fileHeader.Filename)
	if filename == "" {
		respondWithClientError(c, http.StatusBadRequest, "unusable filename")
		return
	}

	tmpDir, err := os.MkdirTemp("", "extract-upload-*")
	if err != nil {
		respondWithError(c, http.StatusInternalServerError, err, "could not stage upload", h.logger)
		return
	}
	defer os.RemoveAll(tmpDir)

	uploadPath := filepath.Join(tmpDir, filename)
	if err := c.SaveUploadedFile(fileHeader, uploadPath); err != nil {
		respondWithError(c, http.StatusInternalServerError, err, "could not stage upload", h.logger)
		return
	}

	result, err := h.pipeline.Run(c.Request.Context(), uploadPath)
	if err != nil {
		if apperrors.IsUnsupportedFile(err) {
			respondWithClientError(c, http.StatusUnsupportedMediaType, err.Error())
			return
		}
		respondWithError(c, http.StatusBadGateway, err, "extraction failed", h.logger,
			zap.String("doc", filename))
		return
	}

	if h.store != nil {
		if err := h.store.SaveRun(c.Request.Context(), result); err != nil {
			// The caller still gets their result; archival is best-effort.
			h.logger.Warn("Failed to archive run",
				zap.String("run_id", result.RunID.String()),
				zap.Error(err))
		} else if err := h.graph.IndexRun(c.Request.Context(), result.RunID, result.State); err != nil {
			h.logger.Warn("Failed to index run graph",
				zap.String("run_id", result.RunID.String()),
				zap.Error(err))
		}
	}

	c.JSON(http.StatusOK, result)
}

func (h *ExtractHandler) ListRuns(c *gin.Context) {
	if h.store == nil {
		respondWithClientError(c, http.StatusNotImplemented, "run archive not configured")
		return
	}
	runs, err := h.store.ListRuns(c.Request.Context(), 50)
	if err != nil {
		respondWithError(c, http.StatusInternalServerError, err, "could not list runs", h.logger)
		return
	}
	if runs == nil {
		runs = []database.RunSummary{}
	}
	c.JSON(http.StatusOK, runs)
}

func (h *ExtractHandler) GetRunState(c *gin.Context) {
	if h.store == nil {
		respondWithClientError(c, http.StatusNotImplemented, "run archive not configured")
		return
	}
	runID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		respondWithClientError(c, http.StatusBadRequest, "invalid run id")
		return
	}
	stateJSON, err := h.store.GetRunState(c.Request.Context(), runID)
	if err != nil {
		respondWithError(c, http.StatusNotFound, err, "run not found", h.logger,
			zap.String("run_id", runID.String()))
		return
	}
	c.Data(http.StatusOK, "application/json", stateJSON)
}

// GetRunGraph returns the derived relationship graph for an archived run.
func (h *ExtractHandler) GetRunGraph(c *gin.Context) {
	if !h.graph.Enabled() {
		respondWithClientError(c, http.StatusNotImplemented, "graph index not configured")
		return
	}
	runID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		respondWithClientError(c, http.StatusBadRequest, "invalid run id")
		return
	}

	edges, err := h.graph.ListEdges(c.Request.Context(), runID)
	if err != nil {
		respondWithError(c, http.StatusInternalServerError, err, "could not load run graph", h.logger,
			zap.String("run_id", runID.String()))
		return
	}
	aliases, err := h.graph.ListAliases(c.Request.Context(), runID)
	if err != nil {
		respondWithError(c, http.StatusInternalServerError, err, "could not load run graph", h.logger,
			zap.String("run_id", runID.String()))
		return
	}
	if edges == nil {
		edges = []graph.Edge{}
	}
	if aliases == nil {
		aliases = []graph.CharacterAlias{}
	}
	c.JSON(http.StatusOK, gin.H{"edges": edges, "aliases": aliases})
}

// GetRunNeighbors returns the edges touching one reference in a run's graph.
// The reference may be a character alias; it is resolved to the canonical
// name first.
func (h *ExtractHandler) GetRunNeighbors(c *gin.Context) {
	if !h.graph.Enabled() {
		respondWithClientError(c, http.StatusNotImplemented, "graph index not configured")
		return
	}
	runID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		respondWithClientError(c, http.StatusBadRequest, "invalid run id")
		return
	}
	ref := c.Query("ref")
	if ref == "" {
		respondWithClientError(c, http.StatusBadRequest, "missing ref query parameter")
		return
	}

	resolved, err := h.graph.ResolveName(c.Request.Context(), runID, ref)
	if err != nil {
		respondWithError(c, http.StatusInternalServerError, err, "could not resolve reference", h.logger,
			zap.String("run_id", runID.String()))
		return
	}
	edges, err := h.graph.Neighbors(c.Request.Context(), runID, resolved)
	if err != nil {
		respondWithError(c, http.StatusInternalServerError, err, "could not load neighbors", h.logger,
			zap.String("run_id", runID.String()))
		return
	}
	if edges == nil {
		edges = []graph.Edge{}
	}
	c.JSON(http.StatusOK, gin.H{"ref": resolved, "edges": edges})
}
