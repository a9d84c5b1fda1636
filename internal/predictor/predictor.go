// Package predictor defines the contract the opaque movie model must satisfy
// and the infrastructure that hosts it: a lazily initialised handle, an
// invoker that normalises model output, and process- and HTTP-backed
// implementations.
package predictor

import (
	"context"
	"sort"
)

// Request is the flattened input handed to the model. Genres and keywords
// are space-joined in the order the user supplied them.
type Request struct {
	Title    string  `json:"title"`
	Overview string  `json:"overview"`
	Genres   string  `json:"genres"`
	Keywords string  `json:"keywords"`
	Budget   float64 `json:"budget"`
}

// Predictor is the single inference capability the model must provide.
// The returned mapping is raw: values may still be library-specific wrappers.
type Predictor interface {
	Predict(ctx context.Context, req Request) (map[string]any, error)
}

// PredictorFunc adapts a function to the Predictor interface.
type PredictorFunc func(ctx context.Context, req Request) (map[string]any, error)

func (f PredictorFunc) Predict(ctx context.Context, req Request) (map[string]any, error) {
	return f(ctx, req)
}

// Result maps named prediction fields to plain scalar values.
type Result map[string]any

// Field is one named prediction value.
type Field struct {
	Name  string
	Value any
}

// Fields returns the result entries sorted by name.
func (r Result) Fields() []Field {
	names := make([]string, 0, len(r))
	for name := range r {
		names = append(names, name)
	}
	sort.Strings(names)

	fields := make([]Field, len(names))
	for i, name := range names {
		fields[i] = Field{Name: name, Value: r[name]}
	}
	return fields
}
