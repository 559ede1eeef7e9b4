package handler

import (
	"net/http"
	"net/url"

	"github.com/gin-gonic/gin"

	"github.com/CyberArcenal/Kabisilya-Management-sub006/internal/dto"
	"github.com/CyberArcenal/Kabisilya-Management-sub006/internal/service"
	"github.com/CyberArcenal/Kabisilya-Management-sub006/pkg/response"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// ExportHandler 导出模块 HTTP 处理器
type ExportHandler struct {
	exportSvc service.ExportService
}

// NewExportHandler 创建 ExportHandler
func NewExportHandler(exportSvc service.ExportService) *ExportHandler {
	return &ExportHandler{exportSvc: exportSvc}
}

// ExportAssignments 导出派工记录
// GET /api/v1/export/assignments?session_id=&status=&date_from=&date_to=
func (h *ExportHandler) ExportAssignments(c *gin.Context) {
	var req dto.ExportRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		bindFailed(c, err)
		return
	}

	buf, filename, err := h.exportSvc.ExportAssignments(c.Request.Context(), &req)
	if err != nil {
		response.FromError(c, err)
		return
	}

	c.Header("Content-Description", "File Transfer")
	c.Header("Content-Disposition", "attachment; filename*=UTF-8''"+url.QueryEscape(filename))
	c.Data(http.StatusOK, xlsxContentType, buf.Bytes())
}
