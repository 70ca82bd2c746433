package domain

import (
	"errors"
	"fmt"
)

// 错误分类，使用 errors.Is 判断。
var (
	// ErrProviderUnavailable 网络错误或提供商返回非 2xx
	ErrProviderUnavailable = errors.New("provider unavailable")
	// ErrUnexpectedResponseShape 提供商响应无法解码为预期结构
	ErrUnexpectedResponseShape = errors.New("unexpected response shape")
	// ErrNotFound 会话有效但邮件 ID 不存在
	ErrNotFound = errors.New("message not found")
	// ErrSessionNotFound 地址不存在或已过期
	ErrSessionNotFound = errors.New("session not found")
	// ErrStoreUnavailable 存储连接失败
	ErrStoreUnavailable = errors.New("store unavailable")
	// ErrRecordShapeMismatch 存储记录损坏或属于未知提供商
	ErrRecordShapeMismatch = errors.New("record shape mismatch")
	// ErrDuplicateKey 地址已存在
	ErrDuplicateKey = errors.New("duplicate key")
	// ErrInvalidInput 参数格式错误
	ErrInvalidInput = errors.New("invalid input")
	// ErrProviderNotAvailable 请求的提供商不受支持
	ErrProviderNotAvailable = errors.New("provider not available")
)

// ProviderError 提供商调用失败，Kind 为 ErrProviderUnavailable 或 ErrUnexpectedResponseShape。
type ProviderError struct {
	Provider   string
	Op         string
	StatusCode int
	Kind       error
	Err        error
}

func (e *ProviderError) Error() string {
	switch {
	case e.StatusCode != 0 && e.Err != nil:
		return fmt.Sprintf("%s %s: %v (status %d): %v", e.Provider, e.Op, e.Kind, e.StatusCode, e.Err)
	case e.StatusCode != 0:
		return fmt.Sprintf("%s %s: %v (status %d)", e.Provider, e.Op, e.Kind, e.StatusCode)
	case e.Err != nil:
		return fmt.Sprintf("%s %s: %v: %v", e.Provider, e.Op, e.Kind, e.Err)
	}
	return fmt.Sprintf("%s %s: %v", e.Provider, e.Op, e.Kind)
}

// Unwrap 返回底层错误。
func (e *ProviderError) Unwrap() error {
	return e.Err
}

// Is 实现 errors.Is 的分类匹配。
func (e *ProviderError) Is(target error) bool {
	return target == e.Kind
}

// StoreError 存储层失败，Kind 通常为 ErrStoreUnavailable、ErrDuplicateKey 或 ErrRecordShapeMismatch，写入已过期会话时为 ErrInvalidInput。
type StoreError struct {
	Backend string
	Op      string
	Kind    error
	Err     error
}

func (e *StoreError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s store %s: %v: %v", e.Backend, e.Op, e.Kind, e.Err)
	}
	return fmt.Sprintf("%s store %s: %v", e.Backend, e.Op, e.Kind)
}

// Unwrap 返回底层错误。
func (e *StoreError) Unwrap() error {
	return e.Err
}

// Is 实现 errors.Is 的分类匹配。
func (e *StoreError) Is(target error) bool {
	return target == e.Kind
}

// Kind 返回错误所属分类的名称，用于命令行输出与指标标签。
func Kind(err error) string {
	switch {
	case err == nil:
		return "none"
	case errors.Is(err, ErrProviderUnavailable):
		return "ProviderUnavailable"
	case errors.Is(err, ErrUnexpectedResponseShape):
		return "UnexpectedResponseShape"
	case errors.Is(err, ErrNotFound):
		return "NotFound"
	case errors.Is(err, ErrSessionNotFound):
		return "SessionNotFound"
	case errors.Is(err, ErrStoreUnavailable):
		return "StoreUnavailable"
	case errors.Is(err, ErrRecordShapeMismatch):
		return "RecordShapeMismatch"
	case errors.Is(err, ErrDuplicateKey):
		return "DuplicateKey"
	case errors.Is(err, ErrInvalidInput):
		return "InvalidInput"
	case errors.Is(err, ErrProviderNotAvailable):
		return "ProviderNotAvailable"
	}
	return "Internal"
}
