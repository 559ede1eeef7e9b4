package dto

// 派工列表分页
const (
	DefaultPageSize = 20
	MaxPageSize     = 100
)

// PaginationRequest 列表查询的 page / page_size
type PaginationRequest struct {
	Page     int `form:"page"      binding:"omitempty,min=1"`
	PageSize int `form:"page_size" binding:"omitempty,min=1,max=100"`
}

func (p *PaginationRequest) GetPage() int {
	if p.Page <= 0 {
		return 1
	}
	return p.Page
}

// GetPageSize 未绑定时取默认值；服务内部直接构造的请求也不超过 MaxPageSize
func (p *PaginationRequest) GetPageSize() int {
	switch {
	case p.PageSize <= 0:
		return DefaultPageSize
	case p.PageSize > MaxPageSize:
		return MaxPageSize
	default:
		return p.PageSize
	}
}

// Window 换算成存储层的 offset / limit
func (p *PaginationRequest) Window() (offset, limit int) {
	limit = p.GetPageSize()
	return (p.GetPage() - 1) * limit, limit
}
