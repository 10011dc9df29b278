package events

// Kafka topics
// These constants define the topics the pipeline publishes to and
// consumes from. Provisioned by cmd/kafka-init.
const (
	// TopicErrorEvents carries normalized inbound error events,
	// keyed by referenceId for partition affinity.
	TopicErrorEvents = "error_events"

	// TopicResults carries remediation outcomes published by the
	// worker pool and consumed by the reconciler.
	TopicResults = "orchestrator_results"
)

// Consumer groups
const (
	// GroupWorkers is the consumer group of the remediation worker pool.
	GroupWorkers = "orchestrator-workers"

	// GroupReconcilers is the consumer group of the result reconciler.
	GroupReconcilers = "result-reconcilers"
)
