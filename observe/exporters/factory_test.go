package exporters

import (
	"context"
	"errors"
	"testing"
)

func TestNewTracingExporter(t *testing.T) {
	t.Setenv("OTEL_EXPORTER_OTLP_ENDPOINT", "")
	t.Setenv("OTEL_EXPORTER_OTLP_TRACES_ENDPOINT", "")

	tests := []struct {
		name string
		want error
	}{
		{"stdout", nil},
		{"none", nil},
		{"", nil},
		{"otlp", ErrNoOTLPEndpoint},
		{"zipkin", ErrUnknownExporter},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			exp, err := NewTracingExporter(context.Background(), tt.name)
			if !errors.Is(err, tt.want) {
				t.Fatalf("NewTracingExporter(%q) err = %v, want %v", tt.name, err, tt.want)
			}
			if err == nil {
				_ = exp.Shutdown(context.Background())
			}
		})
	}
}

func TestNewMetricsReader(t *testing.T) {
	t.Setenv("OTEL_EXPORTER_OTLP_ENDPOINT", "")
	t.Setenv("OTEL_EXPORTER_OTLP_METRICS_ENDPOINT", "")

	tests := []struct {
		name string
		want error
	}{
		{"stdout", nil},
		{"none", nil},
		{"prometheus", nil},
		{"otlp", ErrNoOTLPEndpoint},
		{"statsd", ErrUnknownExporter},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reader, err := NewMetricsReader(context.Background(), tt.name)
			if !errors.Is(err, tt.want) {
				t.Fatalf("NewMetricsReader(%q) err = %v, want %v", tt.name, err, tt.want)
			}
			if err == nil {
				_ = reader.Shutdown(context.Background())
			}
		})
	}
}

func TestOTLPEndpointFromSignalVar(t *testing.T) {
	t.Setenv("OTEL_EXPORTER_OTLP_ENDPOINT", "")
	t.Setenv("OTEL_EXPORTER_OTLP_TRACES_ENDPOINT", "localhost:4317")
	if err := requireEndpoint("OTEL_EXPORTER_OTLP_TRACES_ENDPOINT"); err != nil {
		t.Fatalf("requireEndpoint: %v", err)
	}
}
