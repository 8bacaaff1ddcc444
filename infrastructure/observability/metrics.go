package observability

import (
	"context"
	"fmt"
	"sync"
	"time"

	"fundsledger/config"
	"fundsledger/domain/entities"

	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/stdout/stdoutmetric"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	semconv "go.opentelemetry.io/otel/semconv/v1.34.0"
)

// MetricsProvider manages OpenTelemetry metrics for the ledger and implements
// interfaces.LedgerMetrics.
type MetricsProvider struct {
	config        *config.Config
	meterProvider *sdkmetric.MeterProvider
	meter         metric.Meter
	initialized   bool
	mu            sync.RWMutex

	// Metric instruments
	operationsCounter            metric.Int64Counter
	operationDurationHist        metric.Float64Histogram
	commitRetriesCounter         metric.Int64Counter
	allocatedAmountCounter       metric.Float64Counter
	promosExpiredCounter         metric.Int64Counter
	natsMessagesReceivedCounter  metric.Int64Counter
	natsMessagesPublishedCounter metric.Int64Counter
}

// NewMetricsProvider creates a new metrics provider
func NewMetricsProvider(cfg *config.Config) *MetricsProvider {
	return &MetricsProvider{
		config: cfg,
	}
}

// Initialize sets up the OpenTelemetry metrics provider
func (mp *MetricsProvider) Initialize(ctx context.Context) error {
	mp.mu.Lock()
	defer mp.mu.Unlock()

	if mp.initialized {
		log.Info("Metrics provider already initialized")
		return nil
	}

	if !mp.config.OTelEnabled {
		log.Info("OpenTelemetry metrics disabled")
		mp.initialized = true
		return nil
	}

	var (
		exporter sdkmetric.Exporter
		err      error
	)
	switch mp.config.OTelExporterType {
	case "console":
		exporter, err = stdoutmetric.New()
		if err != nil {
			return fmt.Errorf("failed to create console exporter: %w", err)
		}
		log.Info("Using console metric exporter")

	case "otlp":
		ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()

		exporter, err = otlpmetricgrpc.New(ctx,
			otlpmetricgrpc.WithEndpoint(mp.config.OTelOTLPEndpoint),
			otlpmetricgrpc.WithInsecure(),
		)
		if err != nil {
			return fmt.Errorf("failed to create OTLP exporter: %w", err)
		}
		log.WithField("endpoint", mp.config.OTelOTLPEndpoint).Info("Using OTLP metric exporter")

	case "none":
		log.Info("Metrics export disabled (exporter_type='none')")
		mp.initialized = true
		return nil

	default:
		return fmt.Errorf("unknown exporter type: %s", mp.config.OTelExporterType)
	}

	interval := time.Duration(mp.config.OTelExportIntervalMillis) * time.Millisecond
	if interval <= 0 {
		interval = 10 * time.Second
	}
	return mp.initializeWithReader(sdkmetric.NewPeriodicReader(exporter, sdkmetric.WithInterval(interval)))
}

// initializeWithReader builds the meter provider around reader. Caller must hold mp.mu.
func (mp *MetricsProvider) initializeWithReader(reader sdkmetric.Reader) error {
	res, err := resource.Merge(
		resource.Default(),
		resource.NewWithAttributes(
			semconv.SchemaURL,
			semconv.ServiceName(mp.config.OTelServiceName),
			attribute.String("environment", mp.config.Environment),
		),
	)
	if err != nil {
		return fmt.Errorf("failed to create resource: %w", err)
	}

	mp.meterProvider = sdkmetric.NewMeterProvider(
		sdkmetric.WithResource(res),
		sdkmetric.WithReader(reader),
	)
	otel.SetMeterProvider(mp.meterProvider)
	mp.meter = mp.meterProvider.Meter("funds-ledger")

	if err := mp.createInstruments(); err != nil {
		return fmt.Errorf("failed to create instruments: %w", err)
	}

	mp.initialized = true
	log.Info("Metrics provider initialized successfully")
	return nil
}

// createInstruments creates all metric instruments
func (mp *MetricsProvider) createInstruments() error {
	var err error

	mp.operationsCounter, err = mp.meter.Int64Counter(
		OperationsTotal,
		metric.WithDescription("Total number of ledger operations by outcome"),
		metric.WithUnit("1"),
	)
	if err != nil {
		return fmt.Errorf("failed to create operations counter: %w", err)
	}

	mp.operationDurationHist, err = mp.meter.Float64Histogram(
		OperationDuration,
		metric.WithDescription("Duration of ledger operations in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0),
	)
	if err != nil {
		return fmt.Errorf("failed to create operation duration histogram: %w", err)
	}

	mp.commitRetriesCounter, err = mp.meter.Int64Counter(
		CommitRetries,
		metric.WithDescription("Total number of units of work retried after a concurrency conflict"),
		metric.WithUnit("1"),
	)
	if err != nil {
		return fmt.Errorf("failed to create commit retries counter: %w", err)
	}

	mp.allocatedAmountCounter, err = mp.meter.Float64Counter(
		AllocatedAmount,
		metric.WithDescription("Bet stake drawn from each fund type"),
	)
	if err != nil {
		return fmt.Errorf("failed to create allocation counter: %w", err)
	}

	mp.promosExpiredCounter, err = mp.meter.Int64Counter(
		PromosExpiredTotal,
		metric.WithDescription("Total number of promotional grants expired"),
		metric.WithUnit("1"),
	)
	if err != nil {
		return fmt.Errorf("failed to create promos expired counter: %w", err)
	}

	mp.natsMessagesReceivedCounter, err = mp.meter.Int64Counter(
		NATSMessagesReceivedTotal,
		metric.WithDescription("Total number of NATS messages received"),
		metric.WithUnit("1"),
	)
	if err != nil {
		return fmt.Errorf("failed to create NATS messages received counter: %w", err)
	}

	mp.natsMessagesPublishedCounter, err = mp.meter.Int64Counter(
		NATSMessagesPublishedTotal,
		metric.WithDescription("Total number of NATS messages published"),
		metric.WithUnit("1"),
	)
	if err != nil {
		return fmt.Errorf("failed to create NATS messages published counter: %w", err)
	}

	return nil
}

// Shutdown gracefully shuts down the metrics provider
func (mp *MetricsProvider) Shutdown(ctx context.Context) error {
	mp.mu.Lock()
	defer mp.mu.Unlock()

	if mp.meterProvider != nil {
		return mp.meterProvider.Shutdown(ctx)
	}
	return nil
}

// RecordOperation records the outcome and duration of a ledger operation
func (mp *MetricsProvider) RecordOperation(operation string, errorCode entities.ErrorCode, duration time.Duration) {
	if !mp.isEnabled() {
		return
	}

	outcome := OutcomeSuccess
	if errorCode != "" {
		outcome = OutcomeFailure
	}
	attrs := metric.WithAttributes(
		attribute.String(LabelOperation, operation),
		attribute.String(LabelOutcome, outcome),
		attribute.String(LabelErrorCode, string(errorCode)),
	)
	mp.operationsCounter.Add(context.Background(), 1, attrs)
	mp.operationDurationHist.Record(context.Background(), duration.Seconds(), attrs)
}

// RecordCommitRetry records a unit of work retried after a conflict
func (mp *MetricsProvider) RecordCommitRetry(operation string) {
	if !mp.isEnabled() {
		return
	}

	mp.commitRetriesCounter.Add(context.Background(), 1,
		metric.WithAttributes(
			attribute.String(LabelOperation, operation),
		),
	)
}

// RecordAllocation records the part of a stake drawn from one fund type
func (mp *MetricsProvider) RecordAllocation(fundType entities.FundType, amount decimal.Decimal) {
	if !mp.isEnabled() {
		return
	}

	mp.allocatedAmountCounter.Add(context.Background(), amount.InexactFloat64(),
		metric.WithAttributes(
			attribute.String(LabelFundType, string(fundType)),
		),
	)
}

// RecordPromosExpired records grants forfeited by the expiry pass
func (mp *MetricsProvider) RecordPromosExpired(count int) {
	if !mp.isEnabled() || count <= 0 {
		return
	}

	mp.promosExpiredCounter.Add(context.Background(), int64(count))
}

// RecordNATSMessageReceived records a NATS message being received
func (mp *MetricsProvider) RecordNATSMessageReceived(subject string) {
	if !mp.isEnabled() {
		return
	}

	mp.natsMessagesReceivedCounter.Add(context.Background(), 1,
		metric.WithAttributes(
			attribute.String(LabelSubject, subject),
		),
	)
}

// RecordNATSMessagePublished records a NATS message being published
func (mp *MetricsProvider) RecordNATSMessagePublished(eventType string) {
	if !mp.isEnabled() {
		return
	}

	mp.natsMessagesPublishedCounter.Add(context.Background(), 1,
		metric.WithAttributes(
			attribute.String(LabelEventType, eventType),
		),
	)
}

// isEnabled checks whether instruments exist
func (mp *MetricsProvider) isEnabled() bool {
	mp.mu.RLock()
	defer mp.mu.RUnlock()
	return mp.initialized && mp.meter != nil
}
