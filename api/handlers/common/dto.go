package common

import "ragbot/pkg/types"

// ListResponse 列表响应结构，包含数据与分页信息。
type ListResponse struct {
	Items      interface{}              `json:"items"`
	Pagination types.PaginationResponse `json:"pagination"`
}

// ErrorResponse 统一错误返回结构。
type ErrorResponse struct {
	Success bool   `json:"success"`
	Code    string `json:"code,omitempty"`
	Message string `json:"message"`
}
