package entity

import (
	"errors"
	"fmt"
)

var (
	ErrUnknownTask       = errors.New("unknown task")
	ErrNoTaskSelected    = errors.New("no task selected")
	ErrInvalidImage      = errors.New("invalid image file")
	ErrMissingDependency = errors.New("required component not found")
	ErrModelInit         = errors.New("model initialization failed")
)

// FailureKind категория сбоя обработки
type FailureKind string

const (
	FailureModelInit         FailureKind = "model_init"
	FailureInvalidImage      FailureKind = "invalid_image"
	FailureMissingDependency FailureKind = "missing_dependency"
	FailureRuntime           FailureKind = "runtime"
)

// ProcessingError единый сигнал о неудачном прогоне модели
type ProcessingError struct {
	Task     TaskID
	TaskName string
	Kind     FailureKind
	Err      error
}

func (e *ProcessingError) Error() string {
	return fmt.Sprintf("processing %s failed (%s): %v", e.Task, e.Kind, e.Err)
}

func (e *ProcessingError) Unwrap() error {
	return e.Err
}

// ClassifyFailure определяет категорию сбоя по цепочке ошибок
func ClassifyFailure(err error) FailureKind {
	switch {
	case errors.Is(err, ErrModelInit):
		return FailureModelInit
	case errors.Is(err, ErrInvalidImage):
		return FailureInvalidImage
	case errors.Is(err, ErrMissingDependency):
		return FailureMissingDependency
	default:
		return FailureRuntime
	}
}
