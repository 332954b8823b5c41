// Package integration provides cross-package integration tests for jobforge.
// These tests drive a scenario through the orchestrator, the tick loop and
// the state database together.
//
// Build tag: integration
// Run with: go test -tags integration ./internal/integration/...
package integration
