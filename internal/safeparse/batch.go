// Package safeparse isolates failures while turning untrusted upstream
// payloads into domain values: per-item batch processing, guarded decoders and
// accessors, and markup sanitizers.
package safeparse

import (
	"fmt"
	"log/slog"
)

// ParseError records one item that could not be transformed. It never escapes
// a batch; callers inspect Batch.Failures instead.
type ParseError struct {
	Index int
	Err   error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("item %d: %v", e.Index, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// Batch holds the successfully transformed items and the failures, in input
// order.
type Batch[T any] struct {
	Items    []T
	Failures []*ParseError
}

// Failed returns the number of dropped items.
func (b Batch[T]) Failed() int { return len(b.Failures) }

// ProcessBatch applies fn to every item. An error or panic from fn drops that
// item, logs a warning, and processing continues with the next one.
func ProcessBatch[In, Out any](items []In, fn func(In) (Out, error), logger *slog.Logger, attrs ...any) Batch[Out] {
	if logger == nil {
		logger = slog.Default()
	}
	batch := Batch[Out]{Items: make([]Out, 0, len(items))}
	for i, item := range items {
		out, err := safeApply(fn, item)
		if err != nil {
			pe := &ParseError{Index: i, Err: err}
			batch.Failures = append(batch.Failures, pe)
			logger.Warn("dropping unparseable item", append([]any{"index", i, "error", err}, attrs...)...)
			continue
		}
		batch.Items = append(batch.Items, out)
	}
	return batch
}

func safeApply[In, Out any](fn func(In) (Out, error), item In) (out Out, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return fn(item)
}
