package observability

// Metric name prefixes
const (
	MetricPrefix = "funds_ledger"
)

// Metric names
const (
	// Ledger operation metrics
	OperationsTotal   = MetricPrefix + ".operations_total"
	OperationDuration = MetricPrefix + ".operation_duration"
	CommitRetries     = MetricPrefix + ".commit_retries_total"

	// Bet allocation metrics
	AllocatedAmount = MetricPrefix + ".allocation.amount"

	// Promo metrics
	PromosExpiredTotal = MetricPrefix + ".promos.expired_total"

	// NATS metrics
	NATSMessagesReceivedTotal  = MetricPrefix + ".nats.messages_received_total"
	NATSMessagesPublishedTotal = MetricPrefix + ".nats.messages_published_total"
)

// Label keys
const (
	LabelOperation = "operation"
	LabelOutcome   = "outcome"
	LabelErrorCode = "error_code"
	LabelFundType  = "fund_type"
	LabelEventType = "event_type"
	LabelSubject   = "subject"
)

// Outcomes
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
)
