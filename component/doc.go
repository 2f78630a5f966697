// Package component defines the lifecycle contract shared by every long-lived
// part of meetscribe (database, redis, kafka producer, HTTP server, job
// workers, live coordinator) and a registry that starts them in order and
// stops them in reverse.
package component
