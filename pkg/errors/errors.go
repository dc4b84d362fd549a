// Package errors provides gbdt's error vocabulary: typed errors wrapping
// github.com/cockroachdb/errors so callers can both get a readable message
// and errors.As/errors.Is their way to the specific failure kind.
package errors

import (
	"fmt"

	"github.com/cockroachdb/errors"
)

// Sentinel errors for the kinds recognised by the core (spec §7).
var (
	ErrConfig           = errors.New("gbdt: config error")
	ErrDataShape        = errors.New("gbdt: data shape error")
	ErrNumericDegenerate = errors.New("gbdt: numerical degeneracy")
	ErrIO               = errors.New("gbdt: I/O error")
	ErrDistributed      = errors.New("gbdt: distributed error")
	ErrModelParse       = errors.New("gbdt: model parse error")
	ErrNotFitted        = errors.New("gbdt: model not fitted")
)

// Is, As and Unwrap are re-exported so callers need only import this package.
var (
	Is     = errors.Is
	As     = errors.As
	Unwrap = errors.Unwrap
	Wrap   = errors.Wrap
	Wrapf  = errors.Wrapf
	New    = errors.New
)

// ConfigError reports a rejected or conflicting configuration value.
type ConfigError struct {
	Key, Message string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("gbdt: config error: %s: %s", e.Key, e.Message)
}

func (e *ConfigError) Unwrap() error { return ErrConfig }

func NewConfigError(key, message string) *ConfigError {
	return &ConfigError{Key: key, Message: message}
}

// DataShapeError reports a row/column mismatch discovered while loading a
// Dataset, with the row/column indices that triggered it.
type DataShapeError struct {
	Op          string
	Row, Column int
	Message     string
}

func (e *DataShapeError) Error() string {
	return fmt.Sprintf("gbdt: %s: row %d col %d: %s", e.Op, e.Row, e.Column, e.Message)
}

func (e *DataShapeError) Unwrap() error { return ErrDataShape }

func NewDataShapeError(op string, row, col int, message string) *DataShapeError {
	return &DataShapeError{Op: op, Row: row, Column: col, Message: message}
}

// DimensionError reports a matrix/vector dimension mismatch.
type DimensionError struct {
	Op               string
	Expected, Got    int
	Axis             int
}

func (e *DimensionError) Error() string {
	return fmt.Sprintf("gbdt: %s: dimension mismatch on axis %d: expected %d, got %d",
		e.Op, e.Axis, e.Expected, e.Got)
}

func (e *DimensionError) Unwrap() error { return ErrDataShape }

func NewDimensionError(op string, expected, got, axis int) *DimensionError {
	return &DimensionError{Op: op, Expected: expected, Got: got, Axis: axis}
}

// NumericError reports a numerical degeneracy: an all-constant feature
// (usually handled silently), a NaN label, or "no valid split" at iteration 0.
type NumericError struct {
	Op, Message string
}

func (e *NumericError) Error() string {
	return fmt.Sprintf("gbdt: %s: %s", e.Op, e.Message)
}

func (e *NumericError) Unwrap() error { return ErrNumericDegenerate }

func NewNumericError(op, message string) *NumericError {
	return &NumericError{Op: op, Message: message}
}

// ModelParseError reports a malformed model/dataset file.
type ModelParseError struct {
	Op, Message string
	Line        int
}

func (e *ModelParseError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("gbdt: %s: line %d: %s", e.Op, e.Line, e.Message)
	}
	return fmt.Sprintf("gbdt: %s: %s", e.Op, e.Message)
}

func (e *ModelParseError) Unwrap() error { return ErrModelParse }

func NewModelParseError(op, message string, line int) *ModelParseError {
	return &ModelParseError{Op: op, Message: message, Line: line}
}

// DistributedError reports an Allreduce size mismatch or timeout.
type DistributedError struct {
	Op, Message string
}

func (e *DistributedError) Error() string {
	return fmt.Sprintf("gbdt: distributed: %s: %s", e.Op, e.Message)
}

func (e *DistributedError) Unwrap() error { return ErrDistributed }

func NewDistributedError(op, message string) *DistributedError {
	return &DistributedError{Op: op, Message: message}
}

// NotFittedError reports use of a model/learner before it has been trained.
type NotFittedError struct {
	ModelName, Method string
}

func (e *NotFittedError) Error() string {
	return fmt.Sprintf("gbdt: %s is not fitted: call before %s", e.ModelName, e.Method)
}

func (e *NotFittedError) Unwrap() error { return ErrNotFitted }

func NewNotFittedError(modelName, method string) *NotFittedError {
	return &NotFittedError{ModelName: modelName, Method: method}
}

// IOError wraps an underlying file-system error with the path that failed.
type IOError struct {
	Op, Path string
	Cause    error
}

func (e *IOError) Error() string {
	return fmt.Sprintf("gbdt: %s: %s: %v", e.Op, e.Path, e.Cause)
}

func (e *IOError) Unwrap() error { return e.Cause }

// Is matches ErrIO, so errors.Is recognises the I/O class while Unwrap
// still exposes the underlying cause.
func (e *IOError) Is(target error) bool { return target == ErrIO }

func NewIOError(op, path string, cause error) *IOError {
	return &IOError{Op: op, Path: path, Cause: cause}
}

// Recover converts a panic inside a deferred call into an error, the way
// the teacher's estimators guard Fit/Predict against out-of-bounds slice
// or matrix-dimension panics raised deep in a hot loop.
func Recover(errp *error, op string) {
	if r := recover(); r != nil {
		*errp = errors.Wrapf(fmt.Errorf("%v", r), "gbdt: panic in %s", op)
	}
}
