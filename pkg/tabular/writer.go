package tabular

import (
	"bytes"
	"fmt"

	"github.com/xuri/excelize/v2"
)

// Sheet 一个待写出的工作表
type Sheet struct {
	Name    string
	Title   string // 非空时写在第一行并合并到表头宽度
	Headers []string
	Widths  []float64
	Rows    [][]interface{}
}

// WriteXLSX 生成单工作表的 Excel 文件
func WriteXLSX(sheet Sheet) (*bytes.Buffer, error) {
	f := excelize.NewFile()
	defer f.Close()

	idx, err := f.NewSheet(sheet.Name)
	if err != nil {
		return nil, fmt.Errorf("创建工作表失败: %w", err)
	}
	f.SetActiveSheet(idx)
	// 删除默认 Sheet1
	if sheet.Name != "Sheet1" {
		_ = f.DeleteSheet("Sheet1")
	}

	for i, w := range sheet.Widths {
		col := colName(i)
		_ = f.SetColWidth(sheet.Name, col, col, w)
	}

	headerStyle, _ := f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Size: 11},
		Fill:      excelize.Fill{Type: "pattern", Color: []string{"#D9E1F2"}, Pattern: 1},
		Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center"},
	})

	row := 1
	if sheet.Title != "" && len(sheet.Headers) > 0 {
		_ = f.SetCellValue(sheet.Name, cell(0, row), sheet.Title)
		_ = f.MergeCell(sheet.Name, cell(0, row), cell(len(sheet.Headers)-1, row))
		_ = f.SetCellStyle(sheet.Name, cell(0, row), cell(0, row), headerStyle)
		row++
	}

	for i, h := range sheet.Headers {
		_ = f.SetCellValue(sheet.Name, cell(i, row), h)
	}
	if len(sheet.Headers) > 0 {
		_ = f.SetCellStyle(sheet.Name, cell(0, row), cell(len(sheet.Headers)-1, row), headerStyle)
	}
	row++

	for _, values := range sheet.Rows {
		for i, v := range values {
			if err := f.SetCellValue(sheet.Name, cell(i, row), v); err != nil {
				return nil, fmt.Errorf("写入单元格失败: %w", err)
			}
		}
		row++
	}

	buf := new(bytes.Buffer)
	if err := f.Write(buf); err != nil {
		return nil, fmt.Errorf("写入 Excel 失败: %w", err)
	}
	return buf, nil
}

// ── 辅助函数 ──

func colName(idx int) string {
	name, _ := excelize.ColumnNumberToName(idx + 1)
	return name
}

func cell(colIdx, row int) string {
	name, _ := excelize.CoordinatesToCellName(colIdx+1, row)
	return name
}
