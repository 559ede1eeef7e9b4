package dto

import "github.com/shopspring/decimal"

// ── 派工模块 DTO ──

// CreateAssignmentRequest 单次派工：同一地块同一日期，一到多名工人
// luwang_total 为空或 0 时按地块总量平均分配
type CreateAssignmentRequest struct {
	WorkerIDs      []string         `json:"worker_ids"      binding:"required,min=1,dive,required"`
	PitakID        string           `json:"pitak_id"        binding:"required"`
	AssignmentDate string           `json:"assignment_date" binding:"required"`
	LuwangTotal    *decimal.Decimal `json:"luwang_total"`
	Notes          string           `json:"notes"           binding:"max=1000"`
}

// BulkAssignmentItem 批量派工条目（逐条校验，不在绑定层拦截）
type BulkAssignmentItem struct {
	WorkerID       string           `json:"worker_id"`
	PitakID        string           `json:"pitak_id"`
	AssignmentDate string           `json:"assignment_date"`
	LuwangCount    *decimal.Decimal `json:"luwang_count"`
	Notes          string           `json:"notes"`
}

// BulkAssignmentRequest 批量派工请求
type BulkAssignmentRequest struct {
	Items []BulkAssignmentItem `json:"items" binding:"required,min=1"`
}

// UpdateStatusRequest 状态变更请求
type UpdateStatusRequest struct {
	Status string `json:"status" binding:"required,oneof=active completed cancelled"`
	Note   string `json:"note"   binding:"max=1000"`
}

// UpdateLuwangRequest 工作量变更请求
type UpdateLuwangRequest struct {
	LuwangCount *decimal.Decimal `json:"luwang_count" binding:"required"`
	Note        string           `json:"note"         binding:"max=1000"`
}

// ReassignRequest 改派请求
type ReassignRequest struct {
	WorkerID string `json:"worker_id" binding:"required"`
	Note     string `json:"note"      binding:"max=1000"`
}

// AddNoteRequest 追加备注请求
type AddNoteRequest struct {
	Note string `json:"note" binding:"required,max=1000"`
}

// AssignmentListRequest 派工列表查询参数
type AssignmentListRequest struct {
	SessionID string `form:"session_id"`
	WorkerID  string `form:"worker_id"`
	PitakID   string `form:"pitak_id"`
	Status    string `form:"status"    binding:"omitempty,oneof=active completed cancelled"`
	DateFrom  string `form:"date_from"`
	DateTo    string `form:"date_to"`
	PaginationRequest
}

// NoteListRequest 备注查询参数
type NoteListRequest struct {
	Kind string `form:"kind"`
}

// ── 响应 ──

// AssignmentResponse 派工响应
type AssignmentResponse struct {
	ID             string         `json:"id"`
	WorkerID       string         `json:"worker_id"`
	WorkerName     string         `json:"worker_name,omitempty"`
	PitakID        string         `json:"pitak_id"`
	PitakLocation  string         `json:"pitak_location,omitempty"`
	SessionID      string         `json:"session_id"`
	LuwangCount    string         `json:"luwang_count"`
	AssignmentDate string         `json:"assignment_date"`
	Status         string         `json:"status"`
	Notes          []NoteResponse `json:"notes"`
	NotesText      string         `json:"notes_text"`
	Version        int            `json:"version"`
	CreatedAt      string         `json:"created_at"`
	UpdatedAt      string         `json:"updated_at"`
}

// NoteResponse 备注条目
type NoteResponse struct {
	At      string            `json:"at"`
	Actor   string            `json:"actor"`
	Kind    string            `json:"kind"`
	Message string            `json:"message,omitempty"`
	Payload map[string]string `json:"payload,omitempty"`
}

// ── 批量派工结果 ──

// BulkSkip 通过校验但未写入的条目
type BulkSkip struct {
	Index         int    `json:"index"`
	Reason        string `json:"reason"`
	ConflictingID string `json:"conflicting_id,omitempty"`
}

// BulkFailure 校验失败的条目
type BulkFailure struct {
	Index   int      `json:"index"`
	Reasons []string `json:"reasons"`
}

// BulkSummary 批量结果汇总
type BulkSummary struct {
	Total       int    `json:"total"`
	Created     int    `json:"created"`
	Skipped     int    `json:"skipped"`
	Failed      int    `json:"failed"`
	TotalLuwang string `json:"total_luwang"`
}

// BulkResult 批量派工结果
type BulkResult struct {
	Created []AssignmentResponse `json:"created"`
	Skipped []BulkSkip           `json:"skipped"`
	Failed  []BulkFailure        `json:"failed"`
	Summary BulkSummary          `json:"summary"`
}

// ── 导入 ──

// ImportRowsRequest JSON 形式的导入请求（文件上传走 multipart）
type ImportRowsRequest struct {
	Rows    []map[string]string `json:"rows"    binding:"required,min=1"`
	Columns map[string]string   `json:"columns"`
}

// ImportRowError 行级解析错误；row 从 1 开始
type ImportRowError struct {
	Row    int    `json:"row"`
	Reason string `json:"reason"`
}

// ImportResult 导入结果：行级解析错误 + 批量写入结果
//
// row 与 batch 中的 index 都是从 1 开始的数据行号，不含表头。
type ImportResult struct {
	TotalRows int              `json:"total_rows"`
	RowErrors []ImportRowError `json:"row_errors"`
	Batch     *BulkResult      `json:"batch,omitempty"`
}

// ── 外部同步 ──

// ExternalRecord 外部数据源的一条派工记录；指针字段为空表示外部未提供
type ExternalRecord struct {
	WorkerID    string           `json:"worker_id"`
	PitakID     string           `json:"pitak_id"`
	Date        string           `json:"date"`
	LuwangCount *decimal.Decimal `json:"luwang_count,omitempty"`
	Status      *string          `json:"status,omitempty"`
	Notes       string           `json:"notes,omitempty"`
}

// ReconcileOptions 同步选项
type ReconcileOptions struct {
	ConflictResolution string `json:"conflict_resolution" binding:"omitempty,oneof=skip overwrite merge"`
	DryRun             bool   `json:"dry_run"`
	SyncDate           string `json:"sync_date"`
}

// ReconcileRequest 同步请求
type ReconcileRequest struct {
	SourceID string           `json:"source_id" binding:"required,max=100"`
	Records  []ExternalRecord `json:"records"   binding:"required,min=1"`
	Options  ReconcileOptions `json:"options"`
}

// RecordAction 单条记录的处理结果
type RecordAction struct {
	Index        int    `json:"index"`
	Action       string `json:"action"` // created | updated | skipped | failed
	AssignmentID string `json:"assignment_id,omitempty"`
	Reason       string `json:"reason,omitempty"`
}

// ReconcileSummary 同步汇总
type ReconcileSummary struct {
	SourceID           string  `json:"source_id"`
	Total              int     `json:"total"`
	Created            int     `json:"created"`
	Updated            int     `json:"updated"`
	Skipped            int     `json:"skipped"`
	Failed             int     `json:"failed"`
	SuccessRate        float64 `json:"success_rate"` // 非失败记录占比（百分数）
	ConflictResolution string  `json:"conflict_resolution"`
	DryRun             bool    `json:"dry_run"`
	SyncDate           string  `json:"sync_date"`
}

// ReconcileResult 同步结果
type ReconcileResult struct {
	Created int              `json:"created"`
	Updated int              `json:"updated"`
	Skipped int              `json:"skipped"`
	Failed  int              `json:"failed"`
	Actions []RecordAction   `json:"actions"`
	Summary ReconcileSummary `json:"summary"`
}

// ── 导出 ──

// ExportRequest 导出筛选条件
type ExportRequest struct {
	SessionID string `form:"session_id"`
	Status    string `form:"status"    binding:"omitempty,oneof=active completed cancelled"`
	DateFrom  string `form:"date_from"`
	DateTo    string `form:"date_to"`
}

// AssignmentExportRow 导出行（扁平结构）
type AssignmentExportRow struct {
	AssignmentID   string `json:"assignment_id"`
	AssignmentDate string `json:"assignment_date"`
	WorkerID       string `json:"worker_id"`
	WorkerName     string `json:"worker_name"`
	PitakID        string `json:"pitak_id"`
	PitakLocation  string `json:"pitak_location"`
	BukidName      string `json:"bukid_name"`
	SessionID      string `json:"session_id"`
	LuwangCount    string `json:"luwang_count"`
	Status         string `json:"status"`
	Notes          string `json:"notes"`
}

// ── 经营周期 ──

// SessionResponse 经营周期响应
type SessionResponse struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	StartDate string `json:"start_date"`
	EndDate   string `json:"end_date"`
}
