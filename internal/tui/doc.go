// Package tui provides the live terminal monitor of a jobforge run.
//
// The monitor is read-only apart from pausing. It shows:
//   - every job with its state, priorities, progress and agent
//   - every agent with its current job, queue length and carried resources
//   - the event log, with one live progress line per working job
//
// Frames are built on the run loop goroutine with BuildFrame and drawn on a
// refresh timer, so a fast run does not flood the terminal.
//
// Usage:
//
//	pc := orchestrator.NewPauseController()
//	program, _ := tui.NewProgram(tui.WithPauser(pc))
//	tui.Forward(ctx, program, sched.Bus)
//
//	runner := orchestrator.NewRunner(orch,
//	    orchestrator.WithPauseController(pc),
//	    orchestrator.WithTickHook(func(r orchestrator.TickReport) {
//	        program.Send(tui.FrameMsg{Frame: tui.BuildFrame(store, "priority", r)})
//	    }))
//
//	go func() {
//	    n, err := runner.Run(ctx, 0)
//	    program.Send(tui.RunDoneMsg{Ticks: n, Err: err})
//	}()
//	program.Run()
//
// Keys: tab cycles panels, p pauses, f filters events by topic, q quits.
package tui
