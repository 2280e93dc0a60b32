package entity

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestClassifyFailure(t *testing.T) {
	require.Equal(t, FailureModelInit, ClassifyFailure(fmt.Errorf("load yolo: %w", ErrModelInit)))
	require.Equal(t, FailureInvalidImage, ClassifyFailure(fmt.Errorf("decode: %w", ErrInvalidImage)))
	require.Equal(t, FailureMissingDependency, ClassifyFailure(fmt.Errorf("tesseract: %w", ErrMissingDependency)))
	require.Equal(t, FailureRuntime, ClassifyFailure(errors.New("boom")))
}

func TestProcessingError_Unwrap(t *testing.T) {
	err := &ProcessingError{Task: TaskTextExtraction, Kind: FailureInvalidImage, Err: ErrInvalidImage}
	require.ErrorIs(t, err, ErrInvalidImage)
	require.Contains(t, err.Error(), "text_extraction")

	var pe *ProcessingError
	require.ErrorAs(t, fmt.Errorf("wrapped: %w", err), &pe)
	require.Equal(t, FailureInvalidImage, pe.Kind)
}
