package ingest

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	response "ragbot/api/handlers/common"
	"ragbot/internal/infra/queue"
	"ragbot/internal/models"
	"ragbot/internal/rag"
	"ragbot/pkg/types"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Defaults 注入参数缺省值，来自服务配置
type Defaults struct {
	ChunkSize    int
	ChunkOverlap int
	BatchSize    int
}

// IngestHandler 文档注入处理器
type IngestHandler struct {
	jobs     *models.IngestionJobService
	queue    queue.Client
	store    rag.VectorStore
	defaults Defaults
	logger   *zap.Logger
}

// NewIngestHandler 创建注入处理器
func NewIngestHandler(jobs *models.IngestionJobService, q queue.Client, store rag.VectorStore, defaults Defaults, logger *zap.Logger) *IngestHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &IngestHandler{
		jobs:     jobs,
		queue:    q,
		store:    store,
		defaults: defaults,
		logger:   logger,
	}
}

// IngestRequest 注入请求
type IngestRequest struct {
	Text         string `json:"text" binding:"required,min=1"`
	SourceName   string `json:"source_name"`
	ChunkSize    int    `json:"chunk_size"`
	ChunkOverlap int    `json:"chunk_overlap"`
	BatchSize    int    `json:"batch_size"`
	Reset        bool   `json:"reset"`
}

// IngestAccepted 注入受理响应
type IngestAccepted struct {
	JobID  string `json:"job_id"`
	Status string `json:"status"`
}

// Create 受理文档注入请求，任务异步执行
// @Summary 提交文档注入任务
// @Tags Ingest
// @Accept json
// @Produce json
// @Param request body IngestRequest true "注入请求"
// @Success 202 {object} IngestAccepted
// @Failure 400 {object} response.ErrorResponse
// @Failure 500 {object} response.ErrorResponse
// @Router /api/ingest [post]
func (h *IngestHandler) Create(c *gin.Context) {
	var req IngestRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, response.ErrorResponse{Success: false, Message: "参数错误: " + err.Error()})
		return
	}

	chunkSize := req.ChunkSize
	if chunkSize <= 0 {
		chunkSize = h.defaults.ChunkSize
	}
	overlap := req.ChunkOverlap
	if overlap == 0 {
		overlap = h.defaults.ChunkOverlap
	}
	batchSize := req.BatchSize
	if batchSize <= 0 {
		batchSize = h.defaults.BatchSize
	}

	// 参数错误尽早拒绝，避免投递注定失败的任务
	if overlap < 0 {
		c.JSON(http.StatusBadRequest, response.ErrorResponse{Success: false, Message: "参数错误: chunk_overlap 不能为负"})
		return
	}
	if overlap >= chunkSize {
		c.JSON(http.StatusBadRequest, response.ErrorResponse{
			Success: false,
			Message: fmt.Sprintf("参数错误: chunk_overlap(%d) 必须小于 chunk_size(%d)", overlap, chunkSize),
		})
		return
	}

	params, _ := json.Marshal(map[string]any{
		"chunk_size":    chunkSize,
		"chunk_overlap": overlap,
		"batch_size":    batchSize,
		"reset":         req.Reset,
	})

	job := &models.IngestionJob{
		SourceName:   req.SourceName,
		Text:         req.Text,
		ChunkSize:    chunkSize,
		ChunkOverlap: overlap,
		BatchSize:    batchSize,
		Reset:        req.Reset,
		Params:       params,
	}
	if err := h.jobs.Create(c.Request.Context(), job); err != nil {
		h.logger.Error("创建注入任务失败", zap.Error(err))
		c.JSON(http.StatusInternalServerError, response.ErrorResponse{Success: false, Message: "创建注入任务失败: " + err.Error()})
		return
	}

	if err := h.queue.EnqueueIngestDocument(job.ID); err != nil {
		h.logger.Error("投递注入任务失败", zap.String("job_id", job.ID), zap.Error(err))
		if markErr := h.jobs.MarkFailed(c.Request.Context(), job.ID, "投递任务失败: "+err.Error()); markErr != nil {
			h.logger.Error("记录失败状态失败", zap.String("job_id", job.ID), zap.Error(markErr))
		}
		c.JSON(http.StatusInternalServerError, response.ErrorResponse{Success: false, Message: "投递注入任务失败: " + err.Error()})
		return
	}

	h.logger.Info("注入任务已受理",
		zap.String("job_id", job.ID),
		zap.String("source", job.SourceName),
		zap.Int("char_count", job.CharCount),
	)

	c.JSON(http.StatusAccepted, IngestAccepted{JobID: job.ID, Status: job.Status})
}

// GetJob 查询单个注入任务
// @Summary 查询注入任务
// @Tags Ingest
// @Produce json
// @Param id path string true "任务 ID"
// @Success 200 {object} models.IngestionJob
// @Failure 404 {object} response.ErrorResponse
// @Failure 500 {object} response.ErrorResponse
// @Router /api/ingest/jobs/{id} [get]
func (h *IngestHandler) GetJob(c *gin.Context) {
	id := c.Param("id")

	job, err := h.jobs.Get(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, response.ErrorResponse{Success: false, Message: "注入任务不存在"})
			return
		}
		c.JSON(http.StatusInternalServerError, response.ErrorResponse{Success: false, Message: "查询注入任务失败: " + err.Error()})
		return
	}

	c.JSON(http.StatusOK, job)
}

// ListJobs 分页查询注入任务列表
// @Summary 注入任务列表
// @Tags Ingest
// @Produce json
// @Param page query int false "页码"
// @Param page_size query int false "每页条数"
// @Success 200 {object} response.ListResponse
// @Failure 500 {object} response.ErrorResponse
// @Router /api/ingest/jobs [get]
func (h *IngestHandler) ListJobs(c *gin.Context) {
	var page types.PaginationRequest
	if err := c.ShouldBindQuery(&page); err != nil {
		c.JSON(http.StatusBadRequest, response.ErrorResponse{Success: false, Message: "参数错误: " + err.Error()})
		return
	}
	page.Normalize()

	jobs, total, err := h.jobs.List(c.Request.Context(), page)
	if err != nil {
		c.JSON(http.StatusInternalServerError, response.ErrorResponse{Success: false, Message: "查询任务列表失败: " + err.Error()})
		return
	}

	c.JSON(http.StatusOK, response.ListResponse{
		Items:      jobs,
		Pagination: types.NewPaginationResponse(page.Page, page.PageSize, total),
	})
}

// IndexStats 查询向量索引统计
// @Summary 向量索引统计
// @Tags Ingest
// @Produce json
// @Success 200 {object} rag.IndexStats
// @Failure 500 {object} response.ErrorResponse
// @Router /api/index/stats [get]
func (h *IngestHandler) IndexStats(c *gin.Context) {
	stats, err := h.store.Stats(c.Request.Context())
	if err != nil {
		h.logger.Error("查询索引统计失败", zap.Error(err))
		c.JSON(http.StatusInternalServerError, response.ErrorResponse{Success: false, Message: "查询索引统计失败: " + err.Error()})
		return
	}

	c.JSON(http.StatusOK, stats)
}
