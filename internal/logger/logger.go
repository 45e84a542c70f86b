// Package logger wraps zap with the structured, component-tagged logging
// style used across the engine: every subsystem gets its own
// component-scoped logger via WithComponent, and provider/target/scan
// identifiers are threaded through as key-value fields rather than baked
// into message strings.
package logger

import (
	"context"
	"fmt"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// tracerProviderOnce installs the process-wide SDK TracerProvider on
// the first Logger built. No exporter is registered — spans still get
// real trace/span IDs and propagate correctly across StartSpan calls,
// but nothing ships them anywhere until an operator wires an exporter
// via WithBatcher. That keeps every zap-visible scan_id/target/provider
// field correlated with a genuine trace context instead of the
// otel/trace no-op.
var tracerProviderOnce sync.Once

func installTracerProvider() {
	res := resource.NewWithAttributes("", attribute.String("service.name", "reconforge"))
	tp := sdktrace.NewTracerProvider(sdktrace.WithResource(res))
	otel.SetTracerProvider(tp)
}

// Logger is a component-scoped structured logger.
type Logger struct {
	*zap.SugaredLogger
	tracer trace.Tracer
}

// Config controls the base logger's format and level.
type Config struct {
	// Level is one of debug, info, warn, error.
	Level string
	// Format is "console" (human, colorized) or "json" (production).
	Format string
}

// New builds a base Logger. Invalid levels fall back to info rather than
// erroring, since a scan should never fail to start over a typo'd
// LOG_LEVEL.
func New(cfg Config) (*Logger, error) {
	var zapConfig zap.Config
	if cfg.Format == "console" {
		zapConfig = zap.NewDevelopmentConfig()
		zapConfig.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	} else {
		zapConfig = zap.NewProductionConfig()
	}
	zapConfig.EncoderConfig.TimeKey = "timestamp"
	zapConfig.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		level = zapcore.InfoLevel
	}
	zapConfig.Level = zap.NewAtomicLevelAt(level)
	zapConfig.InitialFields = map[string]interface{}{
		"service": "reconforge",
	}

	base, err := zapConfig.Build(zap.AddCallerSkip(1))
	if err != nil {
		return nil, fmt.Errorf("build logger: %w", err)
	}

	tracerProviderOnce.Do(installTracerProvider)

	return &Logger{
		SugaredLogger: base.Sugar(),
		tracer:        otel.Tracer("reconforge/engine"),
	}, nil
}

// Nop returns a no-op logger, useful for tests that don't want log noise.
func Nop() *Logger {
	return &Logger{SugaredLogger: zap.NewNop().Sugar(), tracer: trace.NewNoopTracerProvider().Tracer("noop")}
}

func (l *Logger) WithFields(fields ...interface{}) *Logger {
	return &Logger{SugaredLogger: l.With(fields...), tracer: l.tracer}
}

func (l *Logger) WithComponent(component string) *Logger { return l.WithFields("component", component) }
func (l *Logger) WithTarget(target string) *Logger        { return l.WithFields("target", target) }
func (l *Logger) WithProvider(provider string) *Logger     { return l.WithFields("provider", provider) }
func (l *Logger) WithScanID(scanID string) *Logger          { return l.WithFields("scan_id", scanID) }

// StartSpan starts a trace span using the tracer captured at construction
// time: the exporter-less SDK tracer for a Logger built by New, the OTel
// no-op tracer for one built by Nop. Either way this is always safe to
// call and needs no collector.
func (l *Logger) StartSpan(ctx context.Context, name string) (context.Context, trace.Span) {
	return l.tracer.Start(ctx, name)
}
