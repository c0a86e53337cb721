// Package provider contains the adapters for the external brief, generation
// and QA services, plus the legacy in-process fallbacks the circuit breaker
// routes to while a primary provider is down.
package provider
