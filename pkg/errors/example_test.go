package errors_test

import (
	"errors"
	"fmt"

	gbdterrors "github.com/go-gbdt/gbdt/pkg/errors"
)

// Example demonstrates Go 1.13+ error wrapping
func Example() {
	baseErr := fmt.Errorf("invalid input value")
	wrappedErr := fmt.Errorf("dataset validation failed: %w", baseErr)
	opErr := fmt.Errorf("dataset.FromColumns: %w", wrappedErr)

	if errors.Is(opErr, baseErr) {
		fmt.Println("Found base error in chain")
	}

	unwrapped := errors.Unwrap(opErr)
	fmt.Printf("Unwrapped: %v\n", unwrapped)

	// Output: Found base error in chain
	// Unwrapped: dataset validation failed: invalid input value
}

// Example_customErrorTypes demonstrates custom error type handling
func Example_customErrorTypes() {
	dimErr := gbdterrors.NewDimensionError("score.Updater.Apply", 5, 3, 1)
	wrappedErr := fmt.Errorf("score update failed: %w", dimErr)

	var dimensionErr *gbdterrors.DimensionError
	if errors.As(wrappedErr, &dimensionErr) {
		fmt.Printf("Dimension error: expected %d, got %d\n",
			dimensionErr.Expected, dimensionErr.Got)
	}

	// Output: Dimension error: expected 5, got 3
}

// Example_errorComparison demonstrates error comparison patterns
func Example_errorComparison() {
	notFittedErr := gbdterrors.NewNotFittedError("GBDT", "Predict")
	configErr := gbdterrors.NewConfigError("num_leaves", "must be >= 2")

	customErr := errors.New("custom processing error")
	wrappedCustom := fmt.Errorf("operation failed: %w", customErr)

	if errors.Is(wrappedCustom, customErr) {
		fmt.Println("Custom error detected")
	}

	var notFitted *gbdterrors.NotFittedError
	if errors.As(notFittedErr, &notFitted) {
		fmt.Printf("Model %s is not fitted for %s\n",
			notFitted.ModelName, notFitted.Method)
	}

	var cfgErr *gbdterrors.ConfigError
	if errors.As(configErr, &cfgErr) {
		fmt.Printf("Config error on %s: %s\n", cfgErr.Key, cfgErr.Message)
	}

	// Output: Custom error detected
	// Model GBDT is not fitted for Predict
	// Config error on num_leaves: must be >= 2
}

// Example_errorChaining demonstrates practical error chaining during training
func Example_errorChaining() {
	simulateTrainError := func() error {
		dataErr := fmt.Errorf("invalid data format")
		loadErr := fmt.Errorf("textio.Read failed: %w", dataErr)
		trainErr := fmt.Errorf("boosting.Fit failed: %w", loadErr)
		return trainErr
	}

	err := simulateTrainError()
	fmt.Printf("Error: %v\n", err)

	current := err
	level := 0
	for current != nil {
		fmt.Printf("Level %d: %v\n", level, current)
		current = errors.Unwrap(current)
		level++
	}

	// Output: Error: boosting.Fit failed: textio.Read failed: invalid data format
	// Level 0: boosting.Fit failed: textio.Read failed: invalid data format
	// Level 1: textio.Read failed: invalid data format
	// Level 2: invalid data format
}

// Example_errorLogging demonstrates a typed error surfacing through a
// wrapped call chain, the way a fatal config/IO error reaches main (§7).
func Example_errorLogging() {
	baseErr := gbdterrors.NewNumericError("boosting.Fit", "no valid split found at iteration 0")
	opErr := fmt.Errorf("training iteration 0: %w", baseErr)

	fmt.Printf("Error occurred during training: %v\n", opErr)

	// Output: Error occurred during training: training iteration 0: gbdt: boosting.Fit: no valid split found at iteration 0
}
