package handler

import (
	"context"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/CyberArcenal/Kabisilya-Management-sub006/internal/dto"
	"github.com/CyberArcenal/Kabisilya-Management-sub006/internal/repository"
	"github.com/CyberArcenal/Kabisilya-Management-sub006/internal/service"
	"github.com/CyberArcenal/Kabisilya-Management-sub006/pkg/response"
)

// AssignmentHandler 派工模块 HTTP 处理器
// 所有写操作在同一事务内执行，失败信封对应的事务回滚
type AssignmentHandler struct {
	sessions    service.SessionService
	assignments service.AssignmentService
	lifecycle   service.LifecycleService
	bulk        service.BulkService
	imports     service.ImportService
	reconcile   service.ReconcileService
	txm         repository.TxManager
	logger      *zap.Logger
}

// NewAssignmentHandler 创建 AssignmentHandler
func NewAssignmentHandler(svc *service.Service, txm repository.TxManager, logger *zap.Logger) *AssignmentHandler {
	return &AssignmentHandler{
		sessions:    svc.Session,
		assignments: svc.Assignment,
		lifecycle:   svc.Lifecycle,
		bulk:        svc.Bulk,
		imports:     svc.Import,
		reconcile:   svc.Reconcile,
		txm:         txm,
		logger:      logger.Named("assignment_handler"),
	}
}

// inSession 事务内取当前经营周期后执行 fn
func (h *AssignmentHandler) inSession(ctx context.Context, fn func(ctx context.Context, sessionID string) error) error {
	return h.txm.RunInTx(ctx, func(ctx context.Context) error {
		sessionID, err := h.sessions.CurrentID(ctx)
		if err != nil {
			return err
		}
		return fn(ctx, sessionID)
	})
}

// Create 单次派工
// POST /api/v1/assignments
func (h *AssignmentHandler) Create(c *gin.Context) {
	var req dto.CreateAssignmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindFailed(c, err)
		return
	}
	actorID, ok := MustGetUserID(c)
	if !ok {
		return
	}

	var created []dto.AssignmentResponse
	err := h.inSession(c.Request.Context(), func(ctx context.Context, sessionID string) error {
		var err error
		created, err = h.assignments.Create(ctx, &req, sessionID, actorID)
		return err
	})
	if err != nil {
		response.FromError(c, err)
		return
	}

	response.Created(c, "assignments created", gin.H{"list": created})
}

// List 派工列表
// GET /api/v1/assignments
func (h *AssignmentHandler) List(c *gin.Context) {
	var req dto.AssignmentListRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		bindFailed(c, err)
		return
	}

	list, total, err := h.assignments.List(c.Request.Context(), &req)
	if err != nil {
		response.FromError(c, err)
		return
	}

	response.OKPage(c, list, total, req.GetPage(), req.GetPageSize())
}

// Get 派工详情
// GET /api/v1/assignments/:id
func (h *AssignmentHandler) Get(c *gin.Context) {
	assignment, err := h.assignments.GetByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.OK(c, "success", assignment)
}

// ListNotes 派工备注
// GET /api/v1/assignments/:id/notes?kind=
func (h *AssignmentHandler) ListNotes(c *gin.Context) {
	var req dto.NoteListRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		bindFailed(c, err)
		return
	}

	notes, err := h.assignments.ListNotes(c.Request.Context(), c.Param("id"), req.Kind)
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.OK(c, "success", gin.H{"list": notes})
}

// UpdateStatus 状态变更
// PUT /api/v1/assignments/:id/status
func (h *AssignmentHandler) UpdateStatus(c *gin.Context) {
	var req dto.UpdateStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindFailed(c, err)
		return
	}
	h.mutate(c, "status updated", func(ctx context.Context, actorID string) (*dto.AssignmentResponse, error) {
		return h.lifecycle.UpdateStatus(ctx, c.Param("id"), &req, actorID)
	})
}

// UpdateLuwang 工作量变更
// PUT /api/v1/assignments/:id/luwang
func (h *AssignmentHandler) UpdateLuwang(c *gin.Context) {
	var req dto.UpdateLuwangRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindFailed(c, err)
		return
	}
	h.mutate(c, "luwang updated", func(ctx context.Context, actorID string) (*dto.AssignmentResponse, error) {
		return h.lifecycle.UpdateLuwang(ctx, c.Param("id"), &req, actorID)
	})
}

// Reassign 改派工人
// PUT /api/v1/assignments/:id/worker
func (h *AssignmentHandler) Reassign(c *gin.Context) {
	var req dto.ReassignRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindFailed(c, err)
		return
	}
	h.mutate(c, "worker reassigned", func(ctx context.Context, actorID string) (*dto.AssignmentResponse, error) {
		return h.lifecycle.Reassign(ctx, c.Param("id"), &req, actorID)
	})
}

// AddNote 追加备注
// POST /api/v1/assignments/:id/notes
func (h *AssignmentHandler) AddNote(c *gin.Context) {
	var req dto.AddNoteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindFailed(c, err)
		return
	}
	h.mutate(c, "note added", func(ctx context.Context, actorID string) (*dto.AssignmentResponse, error) {
		return h.lifecycle.AddNote(ctx, c.Param("id"), &req, actorID)
	})
}

// mutate 单条记录的生命周期操作：事务内执行，返回最新记录
func (h *AssignmentHandler) mutate(c *gin.Context, message string, fn func(ctx context.Context, actorID string) (*dto.AssignmentResponse, error)) {
	actorID, ok := MustGetUserID(c)
	if !ok {
		return
	}

	var updated *dto.AssignmentResponse
	err := h.txm.RunInTx(c.Request.Context(), func(ctx context.Context) error {
		var err error
		updated, err = fn(ctx, actorID)
		return err
	})
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.OK(c, message, updated)
}

// Bulk 批量派工；全部失败时返回失败明细
// POST /api/v1/assignments/bulk
func (h *AssignmentHandler) Bulk(c *gin.Context) {
	var req dto.BulkAssignmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindFailed(c, err)
		return
	}
	actorID, ok := MustGetUserID(c)
	if !ok {
		return
	}

	var result *dto.BulkResult
	err := h.inSession(c.Request.Context(), func(ctx context.Context, sessionID string) error {
		var err error
		result, err = h.bulk.CreateBatch(ctx, req.Items, sessionID, actorID)
		return err
	})
	if err != nil {
		response.FromErrorWithData(c, err, result)
		return
	}

	response.OK(c, "bulk assignment processed", result)
}

// Import 文件导入（multipart 字段 file，可选 columns[字段]=表头）或 JSON 行导入
// POST /api/v1/assignments/import
func (h *AssignmentHandler) Import(c *gin.Context) {
	actorID, ok := MustGetUserID(c)
	if !ok {
		return
	}

	var run func(ctx context.Context, sessionID string) (*dto.ImportResult, error)
	if strings.HasPrefix(c.ContentType(), "multipart/") {
		fh, err := c.FormFile("file")
		if err != nil {
			bindFailed(c, err)
			return
		}
		file, err := fh.Open()
		if err != nil {
			response.BadRequest(c, "cannot open uploaded file")
			return
		}
		defer file.Close()

		columns := c.PostFormMap("columns")
		run = func(ctx context.Context, sessionID string) (*dto.ImportResult, error) {
			return h.imports.ImportFile(ctx, file, fh.Filename, columns, sessionID, actorID)
		}
	} else {
		var req dto.ImportRowsRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			bindFailed(c, err)
			return
		}
		run = func(ctx context.Context, sessionID string) (*dto.ImportResult, error) {
			return h.imports.ImportRows(ctx, req.Rows, req.Columns, sessionID, actorID)
		}
	}

	var result *dto.ImportResult
	err := h.inSession(c.Request.Context(), func(ctx context.Context, sessionID string) error {
		var err error
		result, err = run(ctx, sessionID)
		return err
	})
	if err != nil {
		response.FromErrorWithData(c, err, result)
		return
	}

	h.logger.Info("导入完成", zap.String("actor_id", actorID), zap.Int("rows", result.TotalRows))
	response.OK(c, "import processed", result)
}

// Sync 外部数据对账
// POST /api/v1/assignments/sync
func (h *AssignmentHandler) Sync(c *gin.Context) {
	var req dto.ReconcileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindFailed(c, err)
		return
	}
	actorID, ok := MustGetUserID(c)
	if !ok {
		return
	}

	var result *dto.ReconcileResult
	err := h.inSession(c.Request.Context(), func(ctx context.Context, sessionID string) error {
		var err error
		result, err = h.reconcile.Reconcile(ctx, &req, sessionID, actorID)
		return err
	})
	if err != nil {
		response.FromError(c, err)
		return
	}

	response.OK(c, "sync completed", result)
}
