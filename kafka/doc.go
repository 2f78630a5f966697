// Package kafka carries meetscribe's job lifecycle events to a Kafka topic
// so downstream systems (search indexing, notifications, billing) can react
// to finished or failed transcriptions without polling the API.
//
// The producer lives in the producer subpackage; this package holds the
// shared config, connection setup, event envelope and error helpers.
package kafka
