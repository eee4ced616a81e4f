package errors

import (
	"encoding/json"
	"time"

	"github.com/go-kratos/kratos/v2/errors"
)

// ErrorResponse 统一错误响应格式, as printed by the command line tools.
type ErrorResponse struct {
	Success   bool              `json:"success"` // 始终为false
	Code      int32             `json:"code"`
	Reason    string            `json:"reason"`
	Message   string            `json:"message"`
	Timestamp string            `json:"timestamp"` // ISO8601
	Retryable bool              `json:"retryable"`
	TraceID   string            `json:"trace_id,omitempty"`
	Metadata  map[string]string `json:"metadata,omitempty"`
}

// SuccessResponse 统一成功响应格式
type SuccessResponse struct {
	Success   bool                   `json:"success"` // 始终为true
	Data      interface{}            `json:"data,omitempty"`
	Message   string                 `json:"message,omitempty"`
	Timestamp string                 `json:"timestamp"`
	Meta      map[string]interface{} `json:"meta,omitempty"`
}

// NewErrorResponse 创建错误响应. Errors without a kratos status are reported
// as an internal error with reason UNKNOWN.
func NewErrorResponse(err error) *ErrorResponse {
	e := errors.FromError(err)
	if e == nil {
		return nil
	}
	return &ErrorResponse{
		Code:      e.Code,
		Reason:    e.Reason,
		Message:   e.Message,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Retryable: IsRetryable(err),
		Metadata:  e.Metadata,
	}
}

// WithTraceID 添加链路追踪ID
func (e *ErrorResponse) WithTraceID(traceID string) *ErrorResponse {
	e.TraceID = traceID
	return e
}

// ToJSON 转换为JSON
func (e *ErrorResponse) ToJSON() ([]byte, error) {
	return json.Marshal(e)
}

// NewSuccessResponse 创建成功响应
func NewSuccessResponse(data interface{}) *SuccessResponse {
	return &SuccessResponse{
		Success:   true,
		Data:      data,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}
}

// WithMessage 添加消息
func (s *SuccessResponse) WithMessage(message string) *SuccessResponse {
	s.Message = message
	return s
}

// WithMeta 添加元数据
func (s *SuccessResponse) WithMeta(meta map[string]interface{}) *SuccessResponse {
	s.Meta = meta
	return s
}

// ToJSON 转换为JSON
func (s *SuccessResponse) ToJSON() ([]byte, error) {
	return json.Marshal(s)
}

// IsRetryable 判断错误是否可重试: the DMS could not be reached, failed with
// a server error other than a CMIS runtime fault, or answered garbage.
func IsRetryable(err error) bool {
	if !IsTransport(err) {
		return false
	}
	switch errors.Reason(err) {
	case ReasonNoValidResponse:
		return true
	case ReasonRuntime:
		return false
	}
	status := Status(err)
	return status == 0 || status >= 500
}
