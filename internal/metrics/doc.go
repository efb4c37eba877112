// Package metrics exposes the Prometheus instrumentation for model requests,
// the speech pipeline, live studios, the session store and the HTTP API.
package metrics
