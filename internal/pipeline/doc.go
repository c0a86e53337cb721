// Package pipeline defines the core types shared across the content
// generation subsystems: the per-page record and its stage machine, the
// structured brief and QA result payloads, and the provider and
// infrastructure interfaces the orchestrator is wired against.
package pipeline
