package service

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/CyberArcenal/Kabisilya-Management-sub006/config"
	"github.com/CyberArcenal/Kabisilya-Management-sub006/internal/dto"
	pkgerrors "github.com/CyberArcenal/Kabisilya-Management-sub006/pkg/errors"
	"github.com/CyberArcenal/Kabisilya-Management-sub006/pkg/tabular"
)

func TestExportService_ExportAssignments_NoItems(t *testing.T) {
	env := setupTestService(t, config.RoundingUniform)

	_, _, err := env.svc.Export.ExportAssignments(context.Background(), &dto.ExportRequest{SessionID: testSession})
	if !errors.Is(err, ErrExportNoItems) {
		t.Errorf("期望 ErrExportNoItems，实际: %v", err)
	}
}

func TestExportService_ExportAssignments_Success(t *testing.T) {
	env := setupTestService(t, config.RoundingUniform)
	env.seedActive("asg-1", "w-1", "p-1", "2025-07-01", 25)
	env.seedActive("asg-2", "w-2", "p-2", "2025-07-02", 30)

	buf, filename, err := env.svc.Export.ExportAssignments(context.Background(), &dto.ExportRequest{SessionID: testSession})
	if err != nil {
		t.Fatalf("ExportAssignments 应成功: %v", err)
	}
	if filename != "assignments_session-1.xlsx" {
		t.Errorf("文件名不符: %s", filename)
	}
	if buf == nil || buf.Len() == 0 {
		t.Fatal("导出内容不应为空")
	}

	// 读回校验：标题行 + 表头行之后是数据行
	rows, err := tabular.ReadXLSX(bytes.NewReader(buf.Bytes()))
	if err != nil {
		t.Fatalf("读回 Excel 失败: %v", err)
	}
	// 第一行是标题，被当作表头；其余行（表头 + 2 条数据）作为记录
	if len(rows) != 3 {
		t.Fatalf("期望 3 行记录，实际 %d", len(rows))
	}
}

func TestExportService_Rows_Filter(t *testing.T) {
	env := setupTestService(t, config.RoundingUniform)
	env.seedActive("asg-1", "w-1", "p-1", "2025-07-01", 25)
	env.seedActive("asg-2", "w-2", "p-2", "2025-07-02", 30)

	rows, err := env.svc.Export.Rows(context.Background(), &dto.ExportRequest{DateFrom: "2025-07-02"})
	if err != nil {
		t.Fatalf("Rows 应成功: %v", err)
	}
	if len(rows) != 1 || rows[0].AssignmentID != "asg-2" || rows[0].LuwangCount != "30.00" {
		t.Errorf("期望仅 asg-2，实际 %+v", rows)
	}
	if rows[0].Notes == "" {
		t.Error("导出行应包含渲染后的备注")
	}

	_, err = env.svc.Export.Rows(context.Background(), &dto.ExportRequest{DateFrom: "x"})
	kindOf(t, err, pkgerrors.KindValidation)
}
