// Package main hosts the content generation service entrypoint.
//
// Architecture overview:
//   - HTTP API: internal/api.Server exposes health, metrics, page registration,
//     generation triggers, status polling and approval endpoints. Generation
//     requests are admitted synchronously (conflict/not-found checks) and
//     processed asynchronously; clients poll the status endpoint.
//   - Orchestrator: internal/orchestrator fans a project's pages out over a
//     bounded worker group (pipeline.concurrency). Each page moves through
//     pending -> generating_brief -> writing -> checking -> complete, with the
//     stage committed to the page store after every transition so a restart
//     resumes from the last durable stage. A page failure is isolated; the
//     batch always runs to the end.
//   - Providers: the brief and QA providers are HTTP services guarded by
//     per-provider circuit breakers (internal/breaker) with in-process
//     fallbacks (heuristic briefs, legacy scorer). The generation LLM service
//     has no fallback; its failure fails the page with the error recorded
//     verbatim. Shadow mode runs fallbacks alongside primaries for comparison.
//   - Persistence & fanout: page state lives in Postgres (or in-memory for
//     development); generated drafts are archived to the configured blob store
//     (memory/local/GCS); a compact Pub/Sub notification is published per
//     completed page when a topic is configured.
//   - Observability: internal/events buffers pipeline progress on a
//     non-blocking hub and fans it out to Prometheus and log sinks; request
//     and provider level metrics live in internal/metrics.
//   - Configuration & plumbing: Viper populates config from env/files
//     (CONTENTGEN_ prefix); zap provides structured logging; Prometheus
//     metrics are exported via /metrics.
//
// Operational notes:
//   - Concurrency model: one batch per project at a time, enforced by an
//     in-process admission lock; pages within a batch run on an
//     errgroup-bounded pool. Shutdown drains in-flight batches after the HTTP
//     server stops accepting requests.
//   - Approval: a page can be approved only when generation completed and the
//     QA verdict passed; bulk approval skips ineligible pages and is
//     idempotent.
//
// Run locally: go run ./cmd/contentgen -config config.yaml (or rely solely on
// CONTENTGEN_* env overrides).
package main
