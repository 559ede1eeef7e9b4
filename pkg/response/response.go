package response

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	pkgerrors "github.com/CyberArcenal/Kabisilya-Management-sub006/pkg/errors"
)

// Response 统一响应信封
// status 为调用方提供简单的成败判断，kind 保留可区分的失败类别
type Response struct {
	Status  bool        `json:"status"`
	Code    int         `json:"code"`
	Kind    string      `json:"kind,omitempty"`
	Message string      `json:"message"`
	Data    interface{} `json:"data"`
}

// Pagination 分页元数据
type Pagination struct {
	Page       int   `json:"page"`
	PageSize   int   `json:"page_size"`
	Total      int64 `json:"total"`
	TotalPages int   `json:"total_pages"`
}

// PageData 分页响应数据
type PageData struct {
	List       interface{} `json:"list"`
	Pagination Pagination  `json:"pagination"`
}

// 业务错误码，按类别分段
const (
	CodeOK           = 0
	CodeValidation   = 40001
	CodeUnauthorized = 40101
	CodeForbidden    = 40301
	CodeNotFound     = 40401
	CodeConflict     = 40901
	CodePrecondition = 41201
	CodeTooLarge     = 41301
	CodeRateLimited  = 42901
	CodeInternal     = 50001
)

// ── 成功响应 ──

// OK 200 成功响应
func OK(c *gin.Context, message string, data interface{}) {
	c.JSON(http.StatusOK, Response{
		Status:  true,
		Code:    CodeOK,
		Message: message,
		Data:    data,
	})
}

// Created 201 创建成功
func Created(c *gin.Context, message string, data interface{}) {
	c.JSON(http.StatusCreated, Response{
		Status:  true,
		Code:    CodeOK,
		Message: message,
		Data:    data,
	})
}

// OKPage 200 分页成功
func OKPage(c *gin.Context, list interface{}, total int64, page, pageSize int) {
	totalPages := 0
	if pageSize > 0 {
		totalPages = int(total) / pageSize
		if int(total)%pageSize > 0 {
			totalPages++
		}
	}
	c.JSON(http.StatusOK, Response{
		Status:  true,
		Code:    CodeOK,
		Message: "success",
		Data: PageData{
			List: list,
			Pagination: Pagination{
				Page:       page,
				PageSize:   pageSize,
				Total:      total,
				TotalPages: totalPages,
			},
		},
	})
}

// ── 错误响应 ──

// Error 通用错误响应
func Error(c *gin.Context, httpStatus int, code int, message string) {
	c.JSON(httpStatus, Response{
		Status:  false,
		Code:    code,
		Message: message,
	})
}

// ErrorWithData 失败但仍携带数据（如批量操作的失败报告）
func ErrorWithData(c *gin.Context, httpStatus int, code int, kind, message string, data interface{}) {
	c.JSON(httpStatus, Response{
		Status:  false,
		Code:    code,
		Kind:    kind,
		Message: message,
		Data:    data,
	})
}

// FromError 按错误类别写入失败信封
func FromError(c *gin.Context, err error) {
	FromErrorWithData(c, err, nil)
}

// FromErrorWithData 按错误类别写入失败信封并附带数据
func FromErrorWithData(c *gin.Context, err error, data interface{}) {
	kind := pkgerrors.KindOf(err)
	status, code := StatusFor(kind)
	message := err.Error()
	var e *pkgerrors.Error
	if kind == pkgerrors.KindPersistence && !errors.As(err, &e) {
		// 未分类的底层错误不向调用方暴露细节
		message = "internal server error"
	}
	ErrorWithData(c, status, code, kind.String(), message, data)
}

// StatusFor 错误类别 → HTTP 状态码与业务码
func StatusFor(kind pkgerrors.Kind) (int, int) {
	switch kind {
	case pkgerrors.KindValidation:
		return http.StatusBadRequest, CodeValidation
	case pkgerrors.KindNotFound:
		return http.StatusNotFound, CodeNotFound
	case pkgerrors.KindConflict:
		return http.StatusConflict, CodeConflict
	case pkgerrors.KindPrecondition:
		return http.StatusPreconditionFailed, CodePrecondition
	default:
		return http.StatusInternalServerError, CodeInternal
	}
}

// ── 常见快捷方式 ──

// BadRequest 400
func BadRequest(c *gin.Context, message string) {
	ErrorWithData(c, http.StatusBadRequest, CodeValidation, pkgerrors.KindValidation.String(), message, nil)
}

// Unauthorized 401
func Unauthorized(c *gin.Context, message string) {
	Error(c, http.StatusUnauthorized, CodeUnauthorized, message)
}

// Forbidden 403
func Forbidden(c *gin.Context, message string) {
	Error(c, http.StatusForbidden, CodeForbidden, message)
}

// InternalError 500
func InternalError(c *gin.Context) {
	Error(c, http.StatusInternalServerError, CodeInternal, "internal server error")
}
