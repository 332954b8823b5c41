// Package orchestrator runs the job engine one tick at a time.
//
// Each tick the Orchestrator:
//   - ages effective priorities and reacts to resource_shortage reports
//   - reserves stockpile resources for pending jobs
//   - refreshes the job board and assigns or preempts agents
//   - processes every job in dependency order through the state machine
//
// Transitions into complete, failed and cancelled emit lifecycle events on the
// scheduler Context's bus, flush or roll back effects and spawn conditional
// children. The Runner repeats ticks with optional pacing, pause control and
// periodic snapshots.
//
// Example usage:
//
//	w, _ := world.LoadScenario("scenario.yaml")
//	orch, _ := orchestrator.New(w, orchestrator.NewContext(),
//		orchestrator.WithPathfinder(world.NewGridPather(w)))
//	runner := orchestrator.NewRunner(orch, orchestrator.WithMover(w))
//	ticks, err := runner.Run(ctx, 100)
package orchestrator
