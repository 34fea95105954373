package service

import (
	"errors"
	"fmt"
)

// FailureKind 流水线失败类型
type FailureKind string

const (
	// FailureTransient 网络或服务商错误，可重试
	FailureTransient FailureKind = "transient"
	// FailureValidation 服务商输出无法解析
	FailureValidation FailureKind = "validation"
	// FailureStore 持久化不可用，不消耗重试次数
	FailureStore FailureKind = "store"
)

// 流水线阶段名称
const (
	StageAcquire   = "acquire"
	StageSummarize = "summarize"
)

// StageError 带阶段和失败类型的错误
type StageError struct {
	Stage string
	Kind  FailureKind
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s 阶段失败(%s): %v", e.Stage, e.Kind, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}

func newStageError(stage string, kind FailureKind, err error) *StageError {
	return &StageError{Stage: stage, Kind: kind, Err: err}
}

// KindOf 返回错误的失败类型，未标注的错误视为 transient
func KindOf(err error) FailureKind {
	var stageErr *StageError
	if errors.As(err, &stageErr) {
		return stageErr.Kind
	}
	return FailureTransient
}

// validationError 标记服务商输出格式错误
type validationError struct {
	msg string
}

func (e *validationError) Error() string {
	return e.msg
}

func invalidOutput(format string, args ...any) error {
	return &validationError{msg: fmt.Sprintf(format, args...)}
}

func isValidationError(err error) bool {
	var v *validationError
	return errors.As(err, &v)
}
