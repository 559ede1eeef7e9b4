package service

import (
	"bytes"
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/CyberArcenal/Kabisilya-Management-sub006/internal/dto"
	"github.com/CyberArcenal/Kabisilya-Management-sub006/internal/model"
	"github.com/CyberArcenal/Kabisilya-Management-sub006/internal/repository"
	pkgerrors "github.com/CyberArcenal/Kabisilya-Management-sub006/pkg/errors"
	"github.com/CyberArcenal/Kabisilya-Management-sub006/pkg/tabular"
)

// maxExportRows 单次导出上限
const maxExportRows = 50000

// ── 导出模块业务错误 ──

var (
	ErrExportNoItems      = pkgerrors.New(pkgerrors.KindNotFound, "no assignments match the export filter")
	ErrExportGenerateFail = pkgerrors.New(pkgerrors.KindPersistence, "failed to generate the export file")
)

// ExportService 派工导出
//
// 导出以 bytes.Buffer 返回，由 Handler 层设置 HTTP 响应头后写入 Response。
type ExportService interface {
	// Rows 扁平化的导出行，按日期倒序
	Rows(ctx context.Context, req *dto.ExportRequest) ([]dto.AssignmentExportRow, error)
	// ExportAssignments 导出为 Excel；返回文件内容与建议文件名
	ExportAssignments(ctx context.Context, req *dto.ExportRequest) (*bytes.Buffer, string, error)
}

type exportService struct {
	repo   *repository.Repository
	logger *zap.Logger
}

// NewExportService 创建 ExportService 实例
func NewExportService(repo *repository.Repository, logger *zap.Logger) ExportService {
	return &exportService{repo: repo, logger: logger}
}

func (s *exportService) filter(req *dto.ExportRequest) (repository.AssignmentFilter, error) {
	filter := repository.AssignmentFilter{
		SessionID: req.SessionID,
		Status:    model.AssignmentStatus(req.Status),
	}
	var err error
	if filter.DateFrom, err = parseOptionalDate("date_from", req.DateFrom); err != nil {
		return filter, err
	}
	if filter.DateTo, err = parseOptionalDate("date_to", req.DateTo); err != nil {
		return filter, err
	}
	return filter, nil
}

func (s *exportService) Rows(ctx context.Context, req *dto.ExportRequest) ([]dto.AssignmentExportRow, error) {
	filter, err := s.filter(req)
	if err != nil {
		return nil, err
	}

	// 先计数，避免一次性加载超大结果集
	total, err := s.repo.Assignment.Count(ctx, filter)
	if err != nil {
		return nil, pkgerrors.Persistence(err, "count assignments for export")
	}
	if total > maxExportRows {
		return nil, pkgerrors.Validationf("Export of %d assignments exceeds the limit of %d, narrow the filter", total, maxExportRows)
	}

	list, _, err := s.repo.Assignment.List(ctx, filter)
	if err != nil {
		s.logger.Error("查询导出数据失败", zap.Error(err))
		return nil, pkgerrors.Persistence(err, "list assignments for export")
	}

	rows := make([]dto.AssignmentExportRow, 0, len(list))
	for i := range list {
		a := &list[i]
		row := dto.AssignmentExportRow{
			AssignmentID:   a.AssignmentID,
			AssignmentDate: a.AssignmentDate.Format(model.DateLayout),
			WorkerID:       a.WorkerID,
			PitakID:        a.PitakID,
			SessionID:      a.SessionID,
			LuwangCount:    formatLuwang(a.LuwangCount),
			Status:         string(a.Status),
			Notes:          model.RenderNotes(a.Notes),
		}
		if a.Worker != nil {
			row.WorkerName = a.Worker.Name
		}
		if a.Pitak != nil {
			row.PitakLocation = a.Pitak.Location
			if a.Pitak.Bukid != nil {
				row.BukidName = a.Pitak.Bukid.Name
			}
		}
		rows = append(rows, row)
	}
	return rows, nil
}

func (s *exportService) ExportAssignments(ctx context.Context, req *dto.ExportRequest) (*bytes.Buffer, string, error) {
	rows, err := s.Rows(ctx, req)
	if err != nil {
		return nil, "", err
	}
	if len(rows) == 0 {
		return nil, "", ErrExportNoItems
	}

	sheet := tabular.Sheet{
		Name:    "Assignments",
		Headers: []string{"Date", "Assignment ID", "Worker ID", "Worker", "Pitak ID", "Location", "Bukid", "Session", "Luwang", "Status", "Notes"},
		Widths:  []float64{12, 38, 14, 20, 14, 20, 20, 14, 10, 12, 60},
		Rows:    make([][]interface{}, 0, len(rows)),
	}
	if req.SessionID != "" {
		sheet.Title = "Assignments / session " + req.SessionID
	}
	for _, r := range rows {
		sheet.Rows = append(sheet.Rows, []interface{}{
			r.AssignmentDate, r.AssignmentID, r.WorkerID, r.WorkerName,
			r.PitakID, r.PitakLocation, r.BukidName, r.SessionID,
			r.LuwangCount, r.Status, r.Notes,
		})
	}

	buf, err := tabular.WriteXLSX(sheet)
	if err != nil {
		s.logger.Error("写入 Excel 失败", zap.Error(err))
		return nil, "", ErrExportGenerateFail
	}

	filename := "assignments.xlsx"
	if req.SessionID != "" {
		filename = fmt.Sprintf("assignments_%s.xlsx", req.SessionID)
	}
	return buf, filename, nil
}
