package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/ShayCichocki/jobforge/internal/config"
	"github.com/ShayCichocki/jobforge/internal/events"
	"github.com/ShayCichocki/jobforge/internal/jobtypes"
	"github.com/ShayCichocki/jobforge/internal/orchestrator"
	"github.com/ShayCichocki/jobforge/internal/state"
	"github.com/ShayCichocki/jobforge/internal/world"
	"github.com/ShayCichocki/jobforge/pkg/models"
)

var (
	runTicks         uint64
	runTPS           float64
	runPolicy        string
	runSnapshotEvery uint64
	runJobTypesDir   string
	runWatchTypes    bool
	runResume        string
	runEventsOut     string
	runQuiet         bool
)

var runCmd = &cobra.Command{
	Use:   "run [scenario]",
	Short: "Run a scenario",
	Long: `Load a scenario world and run the job engine over it.

The run is recorded in the state database: every event, plus a world
snapshot every run.snapshot_every ticks and at the end of the run.

Examples:
  jobforge run colony.yaml                 # Run run.ticks ticks
  jobforge run colony.yaml --ticks 0       # Run until interrupted
  jobforge run colony.yaml --tps 5         # Pace at five ticks per second
  jobforge run colony.yaml --policy fifo   # Offer jobs oldest first
  jobforge run --resume 3f2a9c1e-...       # Continue an interrupted run`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runScenarioCommand(cmd, args, false)
	},
}

func init() {
	addRunFlags(runCmd)
	runCmd.Flags().BoolVarP(&runQuiet, "quiet", "q", false, "Only print the final summary")
}

// addRunFlags registers the flags shared by run and watch.
func addRunFlags(cmd *cobra.Command) {
	cmd.Flags().Uint64Var(&runTicks, "ticks", 0, "Number of ticks to run, 0 for unbounded (default run.ticks)")
	cmd.Flags().Float64Var(&runTPS, "tps", 0, "Ticks per second, 0 for unpaced (default run.tps)")
	cmd.Flags().StringVar(&runPolicy, "policy", "", "Board policy: priority, fifo or lifo (default engine.policy)")
	cmd.Flags().Uint64Var(&runSnapshotEvery, "snapshot-every", 0, "Ticks between snapshots (default run.snapshot_every)")
	cmd.Flags().StringVar(&runJobTypesDir, "jobtypes", "", "Directory of job type definitions (default jobtypes.dir)")
	cmd.Flags().BoolVar(&runWatchTypes, "watch-jobtypes", false, "Reload job types when their files change")
	cmd.Flags().StringVar(&runResume, "resume", "", "Resume the run with this id from its latest snapshot")
	cmd.Flags().StringVar(&runEventsOut, "events-out", "", "Also write the event log to this JSON file")
}

// applyRunFlags copies explicitly set flags over the loaded configuration.
func applyRunFlags(cmd *cobra.Command, cfg *config.Config) {
	flags := cmd.Flags()
	if flags.Changed("ticks") {
		cfg.Run.Ticks = runTicks
	}
	if flags.Changed("tps") {
		cfg.Run.TPS = runTPS
	}
	if flags.Changed("policy") {
		cfg.Engine.Policy = runPolicy
	}
	if flags.Changed("snapshot-every") {
		cfg.Run.SnapshotEvery = runSnapshotEvery
	}
	if flags.Changed("jobtypes") {
		cfg.JobTypes.Dir = runJobTypesDir
	}
	if flags.Changed("watch-jobtypes") {
		cfg.JobTypes.Watch = runWatchTypes
	}
}

func runScenarioCommand(cmd *cobra.Command, args []string, withTUI bool) error {
	if len(args) == 0 && runResume == "" {
		return errors.New("a scenario file or --resume is required")
	}
	if len(args) > 0 && runResume != "" {
		return errors.New("--resume restores the scenario of the run; do not pass a scenario file")
	}

	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	applyRunFlags(cmd, cfg)
	if err := cfg.PolicyConfig().Validate(); err != nil {
		return err
	}

	db, err := openState(cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	out := cmd.OutOrStdout()
	if n, err := state.NewRecoveryManager(db).MarkInterrupted(); err != nil {
		return fmt.Errorf("check interrupted runs: %w", err)
	} else if n > 0 {
		printStatus(out, "⚠", fmt.Sprintf("Marked %d abandoned run(s) interrupted (resume with --resume <id>)", n), color.FgYellow)
	}

	logger, err := newLogger(cfg)
	if err != nil {
		return err
	}
	defer logger.Close()

	opts := sessionOptions{ResumeID: runResume, EventsOut: runEventsOut}
	if len(args) > 0 {
		opts.Scenario = args[0]
	}
	s, err := openSession(cfg, db, logger, opts)
	if err != nil {
		return err
	}
	defer s.Close()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if s.resumedAt > 0 {
		printStatus(out, "↻", fmt.Sprintf("Resuming run %s at tick %d", shortID(s.run.ID), s.resumedAt), color.FgCyan)
	} else {
		printStatus(out, "▶", fmt.Sprintf("Run %s: %s (policy %s)", shortID(s.run.ID), s.run.Scenario, cfg.Engine.Policy), color.FgCyan)
	}

	var ran uint64
	var runErr error
	if withTUI {
		ran, runErr = runWithTUI(ctx, s)
	} else {
		var hook func(orchestrator.TickReport)
		if !runQuiet {
			hook = func(rep orchestrator.TickReport) { printTick(out, rep) }
		}
		ran, runErr = s.Run(ctx, hook)
	}

	status, err := s.Finish(ctx, runErr)
	if err != nil {
		return err
	}
	printSummary(out, s, ran, status)
	return runErr
}

// sessionOptions selects what a session runs.
type sessionOptions struct {
	Scenario  string
	ResumeID  string
	EventsOut string
}

// session owns everything one recorded run needs.
type session struct {
	cfg       *config.Config
	db        *state.DB
	run       *state.Run
	world     *world.World
	sched     *orchestrator.Context
	orch      *orchestrator.Orchestrator
	recorder  *state.Recorder
	eventLog  *events.Log
	eventsOut string
	logger    *orchestrator.DebugLogger
	watcher   *jobtypes.Watcher
	pause     *orchestrator.PauseController
	resumedAt uint64
}

// openSession loads or restores the world, registers job types and creates
// the orchestrator and recorders for a run.
func openSession(cfg *config.Config, db *state.DB, logger *orchestrator.DebugLogger, opts sessionOptions) (*session, error) {
	s := &session{
		cfg:       cfg,
		db:        db,
		sched:     orchestrator.NewContext(),
		eventsOut: opts.EventsOut,
		logger:    logger,
		pause:     orchestrator.NewPauseController(),
	}

	if opts.ResumeID != "" {
		w, tick, err := state.NewRecoveryManager(db).Resume(opts.ResumeID)
		if err != nil {
			return nil, fmt.Errorf("resume run %s: %w", opts.ResumeID, err)
		}
		r, err := db.GetRun(opts.ResumeID)
		if err != nil {
			return nil, err
		}
		s.world, s.run, s.resumedAt = w, r, tick
		s.sched.SetTick(tick)
	} else {
		w, err := world.LoadScenario(opts.Scenario)
		if err != nil {
			return nil, err
		}
		r := state.NewRun(opts.Scenario, cfg.Engine.Policy)
		if err := db.CreateRun(r); err != nil {
			return nil, err
		}
		s.world, s.run = w, r
	}

	if err := s.loadJobTypes(); err != nil {
		s.abort()
		return nil, err
	}

	orch, err := orchestrator.New(s.world, s.sched,
		orchestrator.WithPolicy(cfg.PolicyConfig()),
		orchestrator.WithPathfinder(world.NewGridPather(s.world)),
		orchestrator.WithLogger(logger),
	)
	if err != nil {
		s.abort()
		return nil, err
	}
	s.orch = orch
	logger.Log("[run] job types %v, effect actions %v", s.sched.JobTypes.Names(), s.sched.Effects.Registry().Actions())

	s.recorder = state.NewRecorder(db, s.run.ID, s.sched.Bus)
	if s.eventsOut != "" {
		s.eventLog = events.NewLog()
		s.eventLog.Attach(s.sched.Bus)
	}
	return s, nil
}

func (s *session) loadJobTypes() error {
	dir := s.cfg.JobTypes.Dir
	if dir == "" {
		return nil
	}
	n, err := s.sched.JobTypes.LoadDir(dir, s.cfg.JobTypes.Pattern)
	if err != nil {
		return fmt.Errorf("load job types: %w", err)
	}
	s.logger.Log("[run] loaded %d job types from %s", n, dir)

	if !s.cfg.JobTypes.Watch {
		return nil
	}
	w, err := jobtypes.Watch(s.sched.JobTypes, dir, s.cfg.JobTypes.Pattern,
		jobtypes.WithWatchLogger(s.logger.Zap().Named("jobtypes")),
		jobtypes.OnReload(func(n int, err error) {
			if err != nil {
				s.logger.Log("[run] job type reload failed: %v", err)
				return
			}
			s.logger.Log("[run] reloaded %d job types", n)
		}),
	)
	if err != nil {
		return err
	}
	s.watcher = w
	return nil
}

// abort marks a run that never started as failed.
func (s *session) abort() {
	_ = s.db.FinishRun(s.run.ID, state.RunFailed, s.sched.Tick())
}

// Runner builds the tick loop for the session. hook runs after each tick,
// once its events are recorded.
func (s *session) Runner(hook func(orchestrator.TickReport)) *orchestrator.Runner {
	return orchestrator.NewRunner(s.orch,
		orchestrator.WithMover(s.world),
		orchestrator.WithPauseController(s.pause),
		orchestrator.WithSnapshots(s.cfg.Run.SnapshotEvery, func(ctx context.Context, tick uint64) error {
			return s.db.SaveSnapshot(s.run.ID, tick, s.world.Snapshot(tick))
		}),
		orchestrator.WithTickHook(func(rep orchestrator.TickReport) {
			if _, err := s.recorder.Flush(); err != nil {
				s.logger.Log("[run] flush events at tick %d: %v", rep.Tick, err)
			}
			if hook != nil {
				hook(rep)
			}
		}),
	)
}

// Run runs the configured number of ticks.
func (s *session) Run(ctx context.Context, hook func(orchestrator.TickReport)) (uint64, error) {
	return s.Runner(hook).Run(ctx, s.cfg.Run.Ticks)
}

// Finish records the outcome: remaining events, a final snapshot and the
// run status. It returns the status written.
func (s *session) Finish(ctx context.Context, runErr error) (state.RunStatus, error) {
	if _, err := s.recorder.Flush(); err != nil {
		return "", fmt.Errorf("flush events: %w", err)
	}

	tick := s.sched.Tick()
	if tick > 0 {
		if err := s.db.SaveSnapshot(s.run.ID, tick, s.world.Snapshot(tick)); err != nil {
			return "", err
		}
	}

	status := state.RunCompleted
	switch {
	case runErr != nil:
		status = state.RunFailed
	case ctx.Err() != nil || s.pause.IsStopped():
		status = state.RunCanceled
	}
	if err := s.db.FinishRun(s.run.ID, status, tick); err != nil {
		return "", err
	}
	s.run.Status = status
	s.run.Ticks = tick

	if s.eventLog != nil {
		if err := s.eventLog.Save(s.eventsOut); err != nil {
			return status, fmt.Errorf("write event log: %w", err)
		}
	}
	return status, nil
}

// Close stops the job type watcher.
func (s *session) Close() {
	if s.watcher != nil {
		_ = s.watcher.Close()
	}
}

// printTick prints one line for ticks where jobs ended or spawned.
func printTick(w io.Writer, rep orchestrator.TickReport) {
	if len(rep.Completed)+len(rep.Failed)+len(rep.Cancelled)+len(rep.Spawned)+len(rep.Assignment.Preempted) == 0 {
		return
	}
	line := fmt.Sprintf("tick %-5d", rep.Tick)
	if len(rep.Completed) > 0 {
		line += " " + color.GreenString("completed %v", rep.Completed)
	}
	if len(rep.Failed) > 0 {
		line += " " + color.RedString("failed %v", rep.Failed)
	}
	if len(rep.Cancelled) > 0 {
		line += " " + color.YellowString("cancelled %v", rep.Cancelled)
	}
	if len(rep.Assignment.Preempted) > 0 {
		line += " " + color.YellowString("preempted %v", rep.Assignment.Preempted)
	}
	if len(rep.Spawned) > 0 {
		line += " " + color.CyanString("spawned %v", rep.Spawned)
	}
	fmt.Fprintln(w, line)
}

func printSummary(w io.Writer, s *session, ran uint64, status state.RunStatus) {
	fmt.Fprintln(w)
	c := statusColor(status)
	fmt.Fprintf(w, "%s run %s after %d ticks (now at tick %d)\n", c.Sprint(string(status)), s.run.ID, ran, s.sched.Tick())

	var active, complete, failed, cancelled int
	for _, id := range s.world.JobIDs() {
		j, _ := s.world.Job(id)
		switch j.State {
		case models.JobComplete:
			complete++
		case models.JobFailed:
			failed++
		case models.JobCancelled:
			cancelled++
		default:
			active++
		}
	}
	fmt.Fprintf(w, "  Jobs: %d complete, %d failed, %d cancelled, %d active\n", complete, failed, cancelled, active)
	if s.eventsOut != "" {
		fmt.Fprintf(w, "  Event log: %s\n", s.eventsOut)
	}
}
