package types

import (
	"errors"
	"fmt"
)

// ErrorCode represents a unified error code across the engine.
type ErrorCode string

// Engine error codes
const (
	// ErrConfiguration 未注册的阶段或团队，属于接线错误，立即失败
	ErrConfiguration ErrorCode = "CONFIGURATION"
	// ErrTeamExecution 团队执行失败，在单个成员范围内恢复
	ErrTeamExecution ErrorCode = "TEAM_EXECUTION"
	// ErrCriticUnavailable 未配置评审后端，由 NullCritic 降级处理
	ErrCriticUnavailable ErrorCode = "CRITIC_UNAVAILABLE"
	// ErrPruningInput 剪枝输入为空或格式错误，返回零分
	ErrPruningInput ErrorCode = "PRUNING_INPUT"
	// ErrTimeout 团队调用超过等待上限
	ErrTimeout ErrorCode = "TIMEOUT"
	// ErrInvalidRequest 调用参数非法
	ErrInvalidRequest ErrorCode = "INVALID_REQUEST"
	// ErrUpstreamError 外部后端（嵌入、评审模型）返回错误
	ErrUpstreamError ErrorCode = "UPSTREAM_ERROR"
)

// Error represents a structured error with code, message, and metadata.
type Error struct {
	Code      ErrorCode `json:"code"`
	Message   string    `json:"message"`
	Retryable bool      `json:"retryable"`
	Stage     string    `json:"stage,omitempty"`
	Team      string    `json:"team,omitempty"`
	Cause     error     `json:"-"`
}

// Error implements the error interface.
func (e *Error) Error() string {
	prefix := fmt.Sprintf("[%s]", e.Code)
	if e.Stage != "" {
		prefix += " stage=" + e.Stage
	}
	if e.Team != "" {
		prefix += " team=" + e.Team
	}
	if e.Cause != nil {
		return fmt.Sprintf("%s %s: %v", prefix, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s %s", prefix, e.Message)
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Cause
}

// NewError creates a new Error with the given code and message.
func NewError(code ErrorCode, message string) *Error {
	return &Error{Code: code, Message: message}
}

// WithCause adds a cause to the error.
func (e *Error) WithCause(cause error) *Error {
	e.Cause = cause
	return e
}

// WithRetryable marks the error as retryable.
func (e *Error) WithRetryable(retryable bool) *Error {
	e.Retryable = retryable
	return e
}

// WithStage records the stage the error belongs to.
func (e *Error) WithStage(stage string) *Error {
	e.Stage = stage
	return e
}

// WithTeam records the team the error belongs to.
func (e *Error) WithTeam(team string) *Error {
	e.Team = team
	return e
}

// NewConfigurationError 创建配置错误
func NewConfigurationError(format string, args ...any) *Error {
	return NewError(ErrConfiguration, fmt.Sprintf(format, args...))
}

// NewTeamExecutionError 包装团队执行失败
func NewTeamExecutionError(team string, cause error) *Error {
	return NewError(ErrTeamExecution, "team run failed").WithTeam(team).WithCause(cause)
}

// NewTimeoutError 创建团队超时错误
func NewTimeoutError(team string, cause error) *Error {
	return NewError(ErrTimeout, "team run exceeded its deadline").
		WithTeam(team).
		WithCause(cause).
		WithRetryable(true)
}

// AsError extracts a *Error from the chain.
func AsError(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

// IsErrorCode reports whether any *Error in the chain carries code.
func IsErrorCode(err error, code ErrorCode) bool {
	e, ok := AsError(err)
	return ok && e.Code == code
}

// IsRetryable checks if an error is retryable.
func IsRetryable(err error) bool {
	e, ok := AsError(err)
	return ok && e.Retryable
}

// GetErrorCode extracts the error code from an error.
func GetErrorCode(err error) ErrorCode {
	if e, ok := AsError(err); ok {
		return e.Code
	}
	return ""
}
