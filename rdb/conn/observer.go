package conn

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/hatlonely/qorm/log"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Metrics 语句执行的 prometheus 指标
type Metrics struct {
	statementCounter  *prometheus.CounterVec
	statementDuration *prometheus.HistogramVec
	activeSessions    prometheus.Gauge
}

// NewMetrics 创建并注册指标，同名指标已注册时复用已有的收集器
func NewMetrics(name string) (*Metrics, error) {
	statementCounter := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: name + "_statements_total",
			Help: "Total number of executed statements",
		},
		[]string{"operation", "status"},
	)
	statementDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    name + "_statement_duration_seconds",
			Help:    "Duration of statements in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1.0, 5.0},
		},
		[]string{"operation"},
	)
	activeSessions := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: name + "_active_sessions",
			Help: "Number of acquired sessions not yet released",
		},
	)

	m := &Metrics{}
	var err error
	if m.statementCounter, err = register(statementCounter); err != nil {
		return nil, err
	}
	if m.statementDuration, err = register(statementDuration); err != nil {
		return nil, err
	}
	if m.activeSessions, err = register[prometheus.Gauge](activeSessions); err != nil {
		return nil, err
	}
	return m, nil
}

func register[C prometheus.Collector](c C) (C, error) {
	if err := prometheus.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(C); ok {
				return existing, nil
			}
		}
		return c, errors.Wrap(err, "prometheus.Register failed")
	}
	return c, nil
}

// Observer 为每条语句记录指标、追踪和调试日志
type Observer struct {
	name    string
	metrics *Metrics
	tracer  trace.Tracer
	logger  log.Logger
}

func NewObserver(options *Options, logger log.Logger) (*Observer, error) {
	if logger == nil {
		logger = log.Default()
	}
	obs := &Observer{
		name:   options.Name,
		logger: logger,
	}
	if options.EnableMetrics {
		metrics, err := NewMetrics(options.Name)
		if err != nil {
			return nil, errors.WithMessage(err, "failed to create metrics")
		}
		obs.metrics = metrics
	}
	if options.EnableTracing {
		obs.tracer = otel.Tracer(fmt.Sprintf("rdb.%s", options.Name))
	}
	return obs, nil
}

// Operation 取语句的第一个关键字作为操作名
func Operation(statement string) string {
	fields := strings.Fields(statement)
	if len(fields) == 0 {
		return "unknown"
	}
	return strings.ToLower(fields[0])
}

// Observe 执行 fn 并记录观测数据
func (obs *Observer) Observe(ctx context.Context, session string, statement string, fn func(context.Context) error) error {
	operation := Operation(statement)
	start := time.Now()

	var span trace.Span
	if obs.tracer != nil {
		ctx, span = obs.tracer.Start(ctx, fmt.Sprintf("rdb.%s", operation),
			trace.WithAttributes(
				attribute.String("component", obs.name),
				attribute.String("db.system", "postgresql"),
				attribute.String("db.statement", statement),
				attribute.String("session", session),
			),
		)
		defer span.End()
	}

	err := fn(ctx)
	duration := time.Since(start)

	if span != nil {
		span.SetAttributes(attribute.Int64("duration_ms", duration.Milliseconds()))
		if err != nil {
			span.SetStatus(codes.Error, err.Error())
			span.RecordError(err)
		} else {
			span.SetStatus(codes.Ok, "")
		}
	}

	if obs.metrics != nil {
		status := "success"
		if err != nil {
			status = "error"
		}
		obs.metrics.statementCounter.WithLabelValues(operation, status).Inc()
		obs.metrics.statementDuration.WithLabelValues(operation).Observe(duration.Seconds())
	}

	if err != nil {
		obs.logger.DebugContext(ctx, "statement failed", "session", session, "sql", statement, "duration", duration, "error", err)
	} else {
		obs.logger.DebugContext(ctx, "statement", "session", session, "sql", statement, "duration", duration)
	}
	return err
}

func (obs *Observer) sessionAcquired() {
	if obs.metrics != nil {
		obs.metrics.activeSessions.Inc()
	}
}

func (obs *Observer) sessionReleased() {
	if obs.metrics != nil {
		obs.metrics.activeSessions.Dec()
	}
}
