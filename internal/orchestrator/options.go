package orchestrator

import (
	"github.com/ShayCichocki/jobforge/internal/orchestrator/policy"
	"github.com/ShayCichocki/jobforge/internal/world"
)

// Option configures an Orchestrator. Use With* functions to create Options.
type Option func(*orchestratorOptions)

// orchestratorOptions holds all optional configuration.
// These are only used during construction.
type orchestratorOptions struct {
	policyConfig *policy.Config
	pathfinder   world.Pathfinder
	logger       *DebugLogger
}

// WithPolicy sets the policy configuration.
func WithPolicy(p *policy.Config) Option {
	return func(o *orchestratorOptions) { o.policyConfig = p }
}

// WithPathfinder sets the pathfinding collaborator used for site and
// stockpile routing.
func WithPathfinder(p world.Pathfinder) Option {
	return func(o *orchestratorOptions) { o.pathfinder = p }
}

// WithLogger sets the debug logger.
func WithLogger(l *DebugLogger) Option {
	return func(o *orchestratorOptions) { o.logger = l }
}

// defaultOptions returns the default orchestrator options.
func defaultOptions() orchestratorOptions {
	return orchestratorOptions{
		policyConfig: policy.Default(),
		logger:       NopLogger(),
	}
}
