// Package tabular 读写导入导出用的表格文件（xlsx / csv）
package tabular

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"
)

var (
	ErrNoData            = errors.New("file contains no data rows")
	ErrUnsupportedFormat = errors.New("unsupported file format, expected .xlsx or .csv")
)

// Read 按文件扩展名选择解析器
func Read(r io.Reader, filename string) ([]map[string]string, error) {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".xlsx":
		return ReadXLSX(r)
	case ".csv":
		return ReadCSV(r)
	default:
		return nil, ErrUnsupportedFormat
	}
}

// ReadXLSX 读取第一个工作表；首行为表头
func ReadXLSX(r io.Reader) ([]map[string]string, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("无法解析Excel文件: %w", err)
	}
	defer f.Close()

	sheetName := f.GetSheetName(0)
	rows, err := f.GetRows(sheetName)
	if err != nil {
		return nil, fmt.Errorf("读取工作表失败: %w", err)
	}
	return toRecords(rows)
}

// ReadCSV 读取 CSV；首行为表头，允许各行列数不一致
func ReadCSV(r io.Reader) ([]map[string]string, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true
	rows, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("读取 CSV 失败: %w", err)
	}
	return toRecords(rows)
}

// toRecords 表头 + 数据行 → 行对象；全空行跳过
func toRecords(rows [][]string) ([]map[string]string, error) {
	if len(rows) < 2 {
		return nil, ErrNoData
	}

	header := make([]string, len(rows[0]))
	for i, h := range rows[0] {
		header[i] = strings.TrimSpace(strings.TrimPrefix(h, "\uFEFF"))
	}

	var out []map[string]string
	for _, row := range rows[1:] {
		rec := make(map[string]string, len(header))
		blank := true
		for i, h := range header {
			if h == "" || i >= len(row) {
				continue
			}
			v := strings.TrimSpace(row[i])
			if v != "" {
				blank = false
			}
			rec[h] = v
		}
		if blank {
			continue
		}
		out = append(out, rec)
	}

	if len(out) == 0 {
		return nil, ErrNoData
	}
	return out, nil
}
