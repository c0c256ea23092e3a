package telemetry

import (
	"context"
	"maps"
	"sort"
	"strings"

	"github.com/grafana/pyroscope-go"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Profile label keys
const (
	ProfilingLabelOperation  = "operation"
	ProfilingLabelController = "controller"
	ProfilingLabelRoute      = "route"
	ProfilingLabelMethod     = "method"
)

// MaxLabelValueLength truncates label values to keep series small
const MaxLabelValueLength = 128

// HighCardinalityLabels are dropped from profile labels. Identifiers belong
// on spans, not on profiles.
var HighCardinalityLabels = map[string]bool{
	"actor_id":    true,
	"request_id":  true,
	"batch_id":    true,
	"medicine_id": true,
	"trace_id":    true,
	"span_id":     true,
}

// WithProfilingLabels runs fn with pprof labels attached to its goroutine.
// Labels work whether or not a profiler is running.
func WithProfilingLabels(ctx context.Context, labels map[string]string, fn func(context.Context)) {
	pairs := sanitizeLabels(labels)
	if len(pairs) == 0 {
		fn(ctx)
		return
	}
	pyroscope.TagWrapper(ctx, pyroscope.Labels(pairs...), fn)
}

// OperationLabels labels a named ledger operation
func OperationLabels(operation string, extra map[string]string) map[string]string {
	labels := make(map[string]string, len(extra)+1)
	maps.Copy(labels, extra)
	labels[ProfilingLabelOperation] = operation
	return labels
}

// LedgerOperation runs fn inside a "ledger.<operation>" span, under profile
// labels naming the operation. With span profiles on, the span's CPU samples
// are found in Pyroscope by either the span id or the operation.
func LedgerOperation(ctx context.Context, operation string, fn func(context.Context) error, attrs ...attribute.KeyValue) error {
	var err error
	WithProfilingLabels(ctx, OperationLabels(operation, nil), func(ctx context.Context) {
		var span trace.Span
		ctx, span = StartSpan(ctx, "ledger."+operation, attrs...)
		err = fn(ctx)
		EndSpan(span, err)
	})
	return err
}

// sanitizeLabels drops empty and high-cardinality labels, normalises keys
// and returns the pairs sorted by normalised key
func sanitizeLabels(labels map[string]string) []string {
	if len(labels) == 0 {
		return nil
	}
	clean := make(map[string]string, len(labels))
	for key, value := range labels {
		if key == "" || value == "" || HighCardinalityLabels[key] {
			continue
		}
		key = sanitizeLabelKey(key)
		if key == "" || HighCardinalityLabels[key] {
			continue
		}
		if len(value) > MaxLabelValueLength {
			value = value[:MaxLabelValueLength]
		}
		clean[key] = value
	}

	keys := make([]string, 0, len(clean))
	for k := range clean {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	pairs := make([]string, 0, len(keys)*2)
	for _, key := range keys {
		pairs = append(pairs, key, clean[key])
	}
	return pairs
}

// sanitizeLabelKey lowercases key and keeps only [a-z0-9_]
func sanitizeLabelKey(key string) string {
	key = strings.ToLower(key)
	key = strings.NewReplacer(" ", "_", "-", "_").Replace(key)

	out := make([]byte, 0, len(key))
	for i := 0; i < len(key); i++ {
		c := key[i]
		if (c >= 'a' && c <= 'z') || (c >= '0' && c <= '9') || c == '_' {
			out = append(out, c)
		}
	}
	return string(out)
}
