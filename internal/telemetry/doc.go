// Package telemetry sets up OpenTelemetry tracing and metrics for assessd.
//
// Telemetry is off by default. When enabled, spans and metrics are exported
// over OTLP (gRPC or HTTP/protobuf) to a collector. Exporter failures never
// stop the service: the instance reports itself degraded and the global
// no-op providers stay in place.
//
//	tel, err := telemetry.New(ctx, telemetry.FromSettings(cfg.Telemetry, version))
//	if err != nil {
//	    return err
//	}
//	defer tel.Shutdown(context.Background())
//
//	ctx, span := tel.Tracer("assessd/recommend").Start(ctx, "Engine.Recommend")
//	defer span.End()
//
// Tests use NewTestTelemetry, which records spans in memory.
package telemetry
