// Package messaging provides a broker-agnostic API for publishing and
// consuming messages.
//
// Use-case code depends on the Publisher and Consumer interfaces only. Kafka
// is the production backend; Google Pub/Sub is supported for deployments
// without a Kafka cluster. Both honour Key as the unit of ordering.
package messaging
