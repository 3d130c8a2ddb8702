package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"bookbrain/internal/domain/library"
	applog "bookbrain/internal/platform/log"
)

// Answerer 查询编排能力（由 library.Retriever 实现）。
type Answerer interface {
	Answer(ctx context.Context, query string, topK int) (*library.QueryResponse, error)
}

// QueryHandler 查询与调试 API。
type QueryHandler struct {
	retriever Answerer
	passages  library.PassageReader
}

// NewQueryHandler 创建查询处理器。
func NewQueryHandler(retriever Answerer, passages library.PassageReader) *QueryHandler {
	return &QueryHandler{
		retriever: retriever,
		passages:  passages,
	}
}

// RegisterRoutes 注册路由。
func (h *QueryHandler) RegisterRoutes(r chi.Router) {
	r.Post("/query", h.Query)
	r.Get("/debug_paragraph/{id}", h.DebugParagraph)
}

type queryRequest struct {
	Query string `json:"query"`
	TopK  int    `json:"top_k"`
}

// Query POST /query：embed → top-k 检索 → 回表 → 可选合成。
func (h *QueryHandler) Query(w http.ResponseWriter, r *http.Request) {
	var req queryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	resp, err := h.retriever.Answer(r.Context(), req.Query, req.TopK)
	if err != nil {
		if errors.Is(err, library.ErrEmptyQuery) {
			writeError(w, http.StatusBadRequest, "No query provided")
			return
		}
		applog.Error("[API] Query failed", "error", err)
		writeError(w, http.StatusInternalServerError, "An error occurred while processing the query")
		return
	}

	writeJSON(w, http.StatusOK, resp)
}

type debugParagraphResponse struct {
	ParagraphID string `json:"paragraph_id"`
	Paragraph   string `json:"paragraph"`
}

// DebugParagraph GET /debug_paragraph/{id}：按 id 查看段落前 200 字符。
// 缺失返回占位文本，不是错误码。
func (h *QueryHandler) DebugParagraph(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	paragraph, err := h.passages.Get(id)
	if err != nil {
		paragraph = library.NotFoundSentinel
	} else if runes := []rune(paragraph); len(runes) > 200 {
		paragraph = string(runes[:200])
	}

	writeJSON(w, http.StatusOK, debugParagraphResponse{
		ParagraphID: id,
		Paragraph:   paragraph,
	})
}
