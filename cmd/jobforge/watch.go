package main

import (
	"context"
	"fmt"
	"io"
	"log"

	"github.com/spf13/cobra"

	"github.com/ShayCichocki/jobforge/internal/orchestrator"
	"github.com/ShayCichocki/jobforge/internal/tui"
)

var watchCmd = &cobra.Command{
	Use:   "watch [scenario]",
	Short: "Run a scenario with the live monitor",
	Long: `Run a scenario like 'jobforge run' while showing the board, agents and
event log in a full-screen monitor.

Keys:
  tab    cycle panels
  p      pause or resume the run
  f      filter events by topic (events panel)
  q      quit (the run is recorded as canceled if still going)`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runScenarioCommand(cmd, args, true)
	},
}

func init() {
	addRunFlags(watchCmd)
}

// runWithTUI runs the session's loop in the background while the monitor
// owns the terminal. Quitting the monitor stops the loop.
func runWithTUI(ctx context.Context, s *session) (uint64, error) {
	// Suppress log output while TUI is active (it corrupts the display)
	originalOutput := log.Writer()
	log.SetOutput(io.Discard)
	defer log.SetOutput(originalOutput)

	program, _ := tui.NewProgram(
		tui.WithPauser(s.pause),
		tui.WithRefreshRate(s.cfg.TUI.RefreshRate),
		tui.WithTitle(fmt.Sprintf("jobforge · %s", s.run.Scenario)),
	)
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	stream := tui.Forward(ctx, program, s.sched.Bus)

	policy := s.orch.Board().Policy().Name()
	runner := s.Runner(func(rep orchestrator.TickReport) {
		program.Send(tui.FrameMsg{Frame: tui.BuildFrame(s.world, policy, rep)})
	})

	type result struct {
		ticks uint64
		err   error
	}
	loopDone := make(chan result, 1)
	go func() {
		n, err := runner.Run(ctx, s.cfg.Run.Ticks)
		program.Send(tui.RunDoneMsg{Ticks: n, Err: err})
		loopDone <- result{n, err}
	}()

	_, tuiErr := program.Run()

	// The monitor is gone; stop a loop that is still running.
	var res result
	select {
	case res = <-loopDone:
	default:
		s.pause.Stop()
		cancel()
		res = <-loopDone
	}
	if n := stream.DroppedCount(); n > 0 {
		s.logger.Log("[watch] monitor dropped %d events", n)
	}
	if tuiErr != nil && res.err == nil {
		return res.ticks, fmt.Errorf("monitor: %w", tuiErr)
	}
	return res.ticks, res.err
}
