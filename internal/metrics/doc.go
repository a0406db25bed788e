// Package metrics holds the Prometheus instrumentation for the placement API
// and the session shards.
//
// Every metrics type has a constructor registering with the default registry
// and a WithRegistry variant for tests. All recording methods are nil-safe so
// components can run without instrumentation.
package metrics

const namespace = "roomrouter"
