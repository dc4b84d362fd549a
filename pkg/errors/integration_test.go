package errors_test

import (
	"errors"
	"fmt"
	"testing"

	gbdterrors "github.com/go-gbdt/gbdt/pkg/errors"
)

// TestErrorWrappingCompatibility tests Go 1.13+ error wrapping with our custom types
func TestErrorWrappingCompatibility(t *testing.T) {
	originalErr := gbdterrors.NewNotFittedError("TestModel", "Predict")
	wrappedErr := fmt.Errorf("pipeline step failed: %w", originalErr)

	if !errors.Is(wrappedErr, originalErr) {
		t.Errorf("errors.Is failed to identify wrapped error")
	}

	var notFittedErr *gbdterrors.NotFittedError
	if !errors.As(wrappedErr, &notFittedErr) {
		t.Errorf("errors.As failed to extract NotFittedError")
	}

	if notFittedErr.ModelName != "TestModel" {
		t.Errorf("expected ModelName 'TestModel', got '%s'", notFittedErr.ModelName)
	}
}

// TestErrorChainTraversal tests error chain traversal
func TestErrorChainTraversal(t *testing.T) {
	level3 := fmt.Errorf("database connection failed")
	level2 := fmt.Errorf("data loading failed: %w", level3)
	level1 := fmt.Errorf("model training failed: %w", level2)

	unwrapped1 := errors.Unwrap(level1)
	if unwrapped1.Error() != level2.Error() {
		t.Errorf("first unwrap failed")
	}

	unwrapped2 := errors.Unwrap(unwrapped1)
	if unwrapped2.Error() != level3.Error() {
		t.Errorf("second unwrap failed")
	}

	if !errors.Is(level1, level3) {
		t.Errorf("errors.Is failed to find root cause")
	}
}

// TestCombinedErrorTypes tests mixing custom and standard errors
func TestCombinedErrorTypes(t *testing.T) {
	stdErr := fmt.Errorf("underlying I/O failure")
	ioErr := gbdterrors.NewIOError("textio.ReadFile", "train.txt", stdErr)
	wrappedErr := fmt.Errorf("operation context: %w", ioErr)

	if !errors.Is(wrappedErr, stdErr) {
		t.Errorf("failed to find standard error in chain")
	}

	var gotIOErr *gbdterrors.IOError
	if !errors.As(wrappedErr, &gotIOErr) {
		t.Errorf("failed to extract IOError")
	}

	if gotIOErr.Unwrap() != stdErr {
		t.Errorf("IOError.Unwrap() didn't return expected error")
	}
}

// TestSentinelErrors tests sentinel error patterns
func TestSentinelErrors(t *testing.T) {
	err := gbdterrors.NewDataShapeError("dataset.FromColumns", 3, 4, "feature column length mismatch")

	if !errors.Is(err, gbdterrors.ErrDataShape) {
		t.Errorf("failed to identify ErrDataShape sentinel")
	}

	wrappedErr := fmt.Errorf("loading failed: %w", err)

	if !errors.Is(wrappedErr, gbdterrors.ErrDataShape) {
		t.Errorf("failed to identify ErrDataShape through wrapper")
	}
}

// TestRecover exercises the panic-to-error helper used to guard deep
// slice/map indexing inside the boosting hot loop (§7 propagation policy).
func TestRecover(t *testing.T) {
	run := func() (err error) {
		defer gbdterrors.Recover(&err, "test.run")
		var s []int
		_ = s[5]
		return nil
	}

	err := run()
	if err == nil {
		t.Fatal("expected Recover to convert the panic into an error")
	}
}
