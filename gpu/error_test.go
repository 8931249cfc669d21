package gpu_test

import (
	"errors"
	"fmt"
	"testing"

	"github.com/xrruntime/compositor/gpu"
)

type wrappedError struct {
	err error
}

func (w *wrappedError) Error() string { return "wrapped: " + w.err.Error() }
func (w *wrappedError) Unwrap() error { return w.err }

func TestErrZeroAreaIsComparableThroughWrap(t *testing.T) {
	wrapped := &wrappedError{err: gpu.ErrZeroArea}
	if !errors.Is(wrapped, gpu.ErrZeroArea) {
		t.Error("errors.Is should find ErrZeroArea in a wrapped error")
	}
}

func TestPresentationTargetErrorsAreDistinctSentinels(t *testing.T) {
	sentinels := []error{
		gpu.ErrDeviceOutOfMemory,
		gpu.ErrDeviceLost,
		gpu.ErrPresentationTargetLost,
		gpu.ErrPresentationTargetOutdated,
		gpu.ErrZeroArea,
		gpu.ErrDriverBug,
	}
	for i, a := range sentinels {
		for j, b := range sentinels {
			if i == j {
				continue
			}
			if errors.Is(a, b) {
				t.Errorf("%v should not be errors.Is %v", a, b)
			}
		}
	}
}

func TestSentinelWrapPreservesFormatVerb(t *testing.T) {
	err := fmt.Errorf("create_images: %w", gpu.ErrZeroArea)
	if !errors.Is(err, gpu.ErrZeroArea) {
		t.Fatalf("expected wrapped error to satisfy errors.Is, got %v", err)
	}
}
