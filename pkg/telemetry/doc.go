// Package telemetry wires OpenTelemetry tracing and metrics into gocart.
//
// # Setup
//
// Setup builds an SDK TracerProvider from config.TelemetryConfig and installs
// it as the global provider together with the W3C TraceContext propagator:
//
//	provider, err := telemetry.Setup(ctx, cfg.Telemetry, os.Stderr)
//	if err != nil {
//	    return err
//	}
//	defer provider.Shutdown(context.Background())
//
// The "otlp" exporter ships spans to cfg.Endpoint over gRPC. The "stdout"
// exporter writes them as JSON to the given writer. When telemetry is
// disabled Setup returns a Provider backed by the global no-op providers.
//
// # HTTP
//
// NewTracedHTTPClient wraps a transport with otelhttp so every backend call
// carries a traceparent header. TracingMiddleware does the server side.
//
// # Correlation
//
// Every outgoing request gets an X-Request-ID. EnrichLogFields adds request
// and trace identifiers to structured log fields.
//
// # Metrics
//
// APIMetrics records gocart_api_requests_total and
// gocart_api_request_duration_seconds, labelled by operation and outcome.
package telemetry
