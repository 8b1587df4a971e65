package brain

import (
	"reflect"
	"time"
)

// Failure messages carried in Result.Error.
const (
	ErrNoProviders    = "No providers available"
	ErrAllFailed      = "All providers failed to return data"
	ErrNoDataReturned = "No data returned"
)

// ProviderResult is the outcome of one provider call. It is produced by a
// worker goroutine and collected once all calls have returned.
type ProviderResult[T any] struct {
	Provider string `json:"provider"`
	Success  bool   `json:"success"`

	// Data is only meaningful when Success is true.
	Data T `json:"data,omitempty"`

	// Error holds the adapter's error text when Success is false.
	Error string `json:"error,omitempty"`

	Timestamp time.Time `json:"timestamp"`
}

// Result is the aggregated answer to one request together with the
// provenance of every provider that was asked.
type Result[T any] struct {
	Data            T                            `json:"data"`
	ProvidersUsed   []string                     `json:"providers_used"`
	Success         bool                         `json:"success"`
	Error           string                       `json:"error,omitempty"`
	ProviderResults map[string]ProviderResult[T] `json:"provider_results"`
	Timestamp       time.Time                    `json:"timestamp"`

	// CoveragePercentage is the share of attempted providers that returned
	// data, 0 to 100. It is computed when the result is built.
	CoveragePercentage float64 `json:"coverage_percentage"`
}

func newResult[T any](data T, used []string, errMsg string, results map[string]ProviderResult[T], at time.Time) *Result[T] {
	if used == nil {
		used = []string{}
	}
	if results == nil {
		results = map[string]ProviderResult[T]{}
	}
	return &Result[T]{
		Data:               data,
		ProvidersUsed:      used,
		Success:            errMsg == "",
		Error:              errMsg,
		ProviderResults:    results,
		Timestamp:          at,
		CoveragePercentage: coverage(results),
	}
}

func coverage[T any](results map[string]ProviderResult[T]) float64 {
	if len(results) == 0 {
		return 0
	}
	ok := 0
	for _, r := range results {
		if r.Success && !isNil(r.Data) {
			ok++
		}
	}
	return float64(ok) / float64(len(results)) * 100
}

// isNil reports whether v is nil or a nil pointer, slice, map or interface.
// An empty but allocated slice or map is data.
func isNil[T any](v T) bool {
	rv := reflect.ValueOf(any(v))
	if !rv.IsValid() {
		return true
	}
	switch rv.Kind() {
	case reflect.Pointer, reflect.Slice, reflect.Map, reflect.Interface, reflect.Func, reflect.Chan:
		return rv.IsNil()
	}
	return false
}
