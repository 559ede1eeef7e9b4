package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/CyberArcenal/Kabisilya-Management-sub006/internal/dto"
	"github.com/CyberArcenal/Kabisilya-Management-sub006/internal/model"
	pkgerrors "github.com/CyberArcenal/Kabisilya-Management-sub006/pkg/errors"
	"github.com/CyberArcenal/Kabisilya-Management-sub006/pkg/tabular"
)

// 导入逻辑字段
const (
	colWorkerID = "worker_id"
	colPitakID  = "pitak_id"
	colDate     = "date"
	colLuwang   = "luwang"
	colStatus   = "status"
	colNotes    = "notes"
)

// ImportService 表格导入：行 → 批量派工条目，再走批量流程
type ImportService interface {
	// ImportRows 已解析的行；columns 覆盖默认列名映射（逻辑字段 → 表头）
	ImportRows(ctx context.Context, rows []map[string]string, columns map[string]string, sessionID, actorID string) (*dto.ImportResult, error)
	// ImportFile 解析 xlsx / csv 后导入
	ImportFile(ctx context.Context, r io.Reader, filename string, columns map[string]string, sessionID, actorID string) (*dto.ImportResult, error)
}

type importService struct {
	bulk           *bulkService
	defaultColumns map[string]string
	logger         *zap.Logger
}

// newImportService 创建 ImportService 实例；与批量派工共用同一流程
func newImportService(bulk *bulkService, defaultColumns map[string]string, logger *zap.Logger) ImportService {
	return &importService{bulk: bulk, defaultColumns: defaultColumns, logger: logger}
}

func (s *importService) ImportFile(ctx context.Context, r io.Reader, filename string, columns map[string]string, sessionID, actorID string) (*dto.ImportResult, error) {
	if err := requireSession(sessionID); err != nil {
		return nil, err
	}
	rows, err := tabular.Read(r, filename)
	if err != nil {
		if errors.Is(err, tabular.ErrNoData) || errors.Is(err, tabular.ErrUnsupportedFormat) {
			return nil, pkgerrors.Validationf("%s", err.Error())
		}
		return nil, pkgerrors.Wrap(pkgerrors.KindValidation, err, "Cannot parse import file: "+err.Error())
	}
	return s.ImportRows(ctx, rows, columns, sessionID, actorID)
}

func (s *importService) ImportRows(ctx context.Context, rows []map[string]string, columns map[string]string, sessionID, actorID string) (*dto.ImportResult, error) {
	if err := requireSession(sessionID); err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, pkgerrors.Validationf("import contains no rows")
	}

	mapping := s.mapping(columns)
	result := &dto.ImportResult{TotalRows: len(rows), RowErrors: []dto.ImportRowError{}}

	// 1. 行 → 条目；rowOf[i] 为第 i 个条目对应的行号（从 1 开始）
	items := make([]dto.BulkAssignmentItem, 0, len(rows))
	rowOf := make([]int, 0, len(rows))
	for i, row := range rows {
		item, err := rowToItem(row, mapping)
		if err != nil {
			result.RowErrors = append(result.RowErrors, dto.ImportRowError{Row: i + 1, Reason: err.Error()})
			continue
		}
		items = append(items, item)
		rowOf = append(rowOf, i+1)
	}
	if len(items) == 0 {
		return result, pkgerrors.Validationf("None of the %d rows could be read", len(rows))
	}

	// 2. 批量流程；结果里的条目索引换算回行号
	batch, err := s.bulk.run(ctx, items, sessionID, actorID, batchOptions{
		path:     pathImport,
		noteKind: model.NoteImport,
		action:   ActionAssignmentImport,
	})
	if batch != nil {
		for i := range batch.Skipped {
			batch.Skipped[i].Index = rowOf[batch.Skipped[i].Index]
		}
		for i := range batch.Failed {
			batch.Failed[i].Index = rowOf[batch.Failed[i].Index]
		}
		result.Batch = batch
	}
	if err != nil {
		return result, err
	}

	s.logger.Info("导入完成",
		zap.Int("rows", len(rows)),
		zap.Int("row_errors", len(result.RowErrors)),
		zap.Int("created", batch.Summary.Created),
	)
	return result, nil
}

// mapping 默认映射 + 请求覆盖；表头统一小写比较
func (s *importService) mapping(overrides map[string]string) map[string]string {
	m := make(map[string]string, len(s.defaultColumns))
	for field, header := range s.defaultColumns {
		m[field] = normalizeHeader(header)
	}
	for field, header := range overrides {
		if strings.TrimSpace(header) != "" {
			m[strings.ToLower(strings.TrimSpace(field))] = normalizeHeader(header)
		}
	}
	for _, field := range []string{colWorkerID, colPitakID, colDate, colLuwang, colStatus, colNotes} {
		if m[field] == "" {
			m[field] = field
		}
	}
	return m
}

func normalizeHeader(h string) string {
	return strings.ToLower(strings.TrimSpace(h))
}

// rowToItem 按映射取值；表头大小写不敏感
func rowToItem(row map[string]string, mapping map[string]string) (dto.BulkAssignmentItem, error) {
	lookup := make(map[string]string, len(row))
	for k, v := range row {
		lookup[normalizeHeader(k)] = strings.TrimSpace(v)
	}
	get := func(field string) string { return lookup[mapping[field]] }

	item := dto.BulkAssignmentItem{
		WorkerID:       get(colWorkerID),
		PitakID:        get(colPitakID),
		AssignmentDate: get(colDate),
		Notes:          get(colNotes),
	}

	if raw := get(colLuwang); raw != "" {
		d, err := decimal.NewFromString(raw)
		if err != nil {
			return item, fmt.Errorf("invalid luwang %q", raw)
		}
		item.LuwangCount = &d
	}

	// 导入只能新建 active 记录
	if status := strings.ToLower(get(colStatus)); status != "" && status != string(model.AssignmentActive) {
		return item, fmt.Errorf("imported assignments must be active, got %q", status)
	}
	return item, nil
}
