package chat

import (
	"context"
	"net/http"
	"time"

	response "ragbot/api/handlers/common"
	"ragbot/internal/models"
	"ragbot/internal/rag"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Answerer 问答服务接口，便于测试替换
type Answerer interface {
	Answer(ctx context.Context, question string) (*rag.ChatAnswer, error)
}

// ChatHandler 问答处理器
type ChatHandler struct {
	answerer Answerer
	chatLogs *models.ChatLogService // 可为 nil，对话审计按尽力而为记录
	model    string
	logger   *zap.Logger
}

// NewChatHandler 创建问答处理器
func NewChatHandler(answerer Answerer, chatLogs *models.ChatLogService, model string, logger *zap.Logger) *ChatHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ChatHandler{
		answerer: answerer,
		chatLogs: chatLogs,
		model:    model,
		logger:   logger,
	}
}

// ChatRequest 问答请求
type ChatRequest struct {
	Question string `json:"question" binding:"required,min=1"`
}

// ChatResponse 问答响应
type ChatResponse struct {
	Answer           string   `json:"answer"`
	RetrievedContext []string `json:"retrieved_context"`
}

// Chat 基于已注入文档回答问题
// @Summary 检索增强问答
// @Tags Chat
// @Accept json
// @Produce json
// @Param request body ChatRequest true "问答请求"
// @Success 200 {object} ChatResponse
// @Failure 400 {object} response.ErrorResponse
// @Failure 500 {object} response.ErrorResponse
// @Router /api/chat [post]
func (h *ChatHandler) Chat(c *gin.Context) {
	var req ChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, response.ErrorResponse{Success: false, Message: "参数错误: " + err.Error()})
		return
	}

	start := time.Now()
	answer, err := h.answerer.Answer(c.Request.Context(), req.Question)
	if err != nil {
		h.logger.Error("回答问题失败",
			zap.String("question", req.Question),
			zap.Error(err),
		)
		c.JSON(http.StatusInternalServerError, response.ErrorResponse{Success: false, Message: "回答问题失败: " + err.Error()})
		return
	}

	h.recordChatLog(c.Request.Context(), req.Question, answer, time.Since(start))

	c.JSON(http.StatusOK, ChatResponse{
		Answer:           answer.Answer,
		RetrievedContext: answer.RetrievedContext,
	})
}

// recordChatLog 记录对话日志，失败只打日志不影响响应
func (h *ChatHandler) recordChatLog(ctx context.Context, question string, answer *rag.ChatAnswer, latency time.Duration) {
	if h.chatLogs == nil {
		return
	}

	entry := &models.ChatLog{
		Question:     question,
		Answer:       answer.Answer,
		ContextCount: len(answer.RetrievedContext),
		LatencyMs:    latency.Milliseconds(),
		Model:        h.model,
	}
	if err := h.chatLogs.Record(ctx, entry); err != nil {
		h.logger.Warn("记录对话日志失败", zap.Error(err))
	}
}
