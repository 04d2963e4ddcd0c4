package httpapi

import (
	"encoding/json"
	"net/http"
)

// Pagination 列表接口的分页信息（与前端表格组件字段对齐）
type Pagination struct {
	CurrentPage  int  `json:"currentPage"`
	TotalPages   int  `json:"totalPages"`
	TotalRecords int  `json:"totalRecords"`
	PageSize     int  `json:"pageSize"`
	HasPrev      bool `json:"hasPrev"`
	HasNext      bool `json:"hasNext"`
}

// NewPagination 计算分页信息
func NewPagination(page, size, total int) Pagination {
	totalPages := (total + size - 1) / size
	if totalPages < 1 {
		totalPages = 1
	}
	return Pagination{
		CurrentPage:  page,
		TotalPages:   totalPages,
		TotalRecords: total,
		PageSize:     size,
		HasPrev:      page > 1,
		HasNext:      page < totalPages,
	}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]interface{}{
		"success": false,
		"error":   message,
	})
}
