package main

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/ShayCichocki/jobforge/internal/events"
	"github.com/ShayCichocki/jobforge/internal/state"
)

var (
	eventsSince uint64
	eventsTopic string
	eventsLimit int
	eventsJSON  bool
	eventsFile  string
)

var eventsCmd = &cobra.Command{
	Use:   "events [run-id]",
	Short: "Print the event log of a run",
	Long: `Print the recorded events of a run, oldest first.

Without a run id the latest run is used. With --file, events are read from
a JSON event log written by 'jobforge run --events-out' instead.

Examples:
  jobforge events                        # Latest run
  jobforge events 3f2a9c1e --since 50    # From tick 50
  jobforge events --topic job_failed     # Only failures
  jobforge events --file run.json --json # Re-emit a saved log as JSON`,
	Args: cobra.MaximumNArgs(1),
	RunE: runEvents,
}

func init() {
	eventsCmd.Flags().Uint64Var(&eventsSince, "since", 0, "Only events at or after this tick")
	eventsCmd.Flags().StringVar(&eventsTopic, "topic", "", "Only events with this topic")
	eventsCmd.Flags().IntVarP(&eventsLimit, "limit", "n", 0, "Maximum number of events, 0 for all")
	eventsCmd.Flags().BoolVar(&eventsJSON, "json", false, "Print events as JSON lines")
	eventsCmd.Flags().StringVar(&eventsFile, "file", "", "Read a saved JSON event log instead of the database")
}

func runEvents(cmd *cobra.Command, args []string) error {
	var evs []events.Event
	if eventsFile != "" {
		l, err := events.LoadLog(eventsFile)
		if err != nil {
			return err
		}
		evs = filterEvents(l.Since(eventsSince), events.Topic(eventsTopic), eventsLimit)
	} else {
		cfg, err := loadConfig()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		db, err := openState(cfg)
		if err != nil {
			return err
		}
		defer db.Close()

		var r *state.Run
		if len(args) == 1 {
			r, err = findRun(db, args[0])
		} else {
			r, err = db.LatestRun()
		}
		if err != nil {
			return err
		}
		evs, err = db.ListEvents(r.ID, state.EventFilter{
			SinceTick: eventsSince,
			Topic:     events.Topic(eventsTopic),
			Limit:     eventsLimit,
		})
		if err != nil {
			return err
		}
	}
	return printEvents(cmd.OutOrStdout(), evs, eventsJSON)
}

// filterEvents applies the topic and limit filters to an in-memory log.
func filterEvents(evs []events.Event, topic events.Topic, limit int) []events.Event {
	out := make([]events.Event, 0, len(evs))
	for _, ev := range evs {
		if topic != "" && ev.Topic != topic {
			continue
		}
		out = append(out, ev)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out
}

func printEvents(w io.Writer, evs []events.Event, asJSON bool) error {
	if asJSON {
		enc := json.NewEncoder(w)
		for _, ev := range evs {
			if err := enc.Encode(ev); err != nil {
				return err
			}
		}
		return nil
	}
	for _, ev := range evs {
		fmt.Fprintf(w, "%6d  %s  %s\n", ev.Tick, topicColor(ev.Topic).Sprintf("%-18s", ev.Topic), eventDetail(ev))
	}
	return nil
}

func topicColor(t events.Topic) *color.Color {
	switch t {
	case events.TopicJobCompleted:
		return color.New(color.FgGreen)
	case events.TopicJobFailed:
		return color.New(color.FgRed)
	case events.TopicJobCancelled, events.TopicJobBlocked, events.TopicResourceShortage:
		return color.New(color.FgYellow)
	default:
		return color.New(color.FgWhite)
	}
}

func eventDetail(ev events.Event) string {
	p := ev.Payload
	if ev.Topic == events.TopicResourceShortage {
		return "kind=" + p.Kind
	}
	s := fmt.Sprintf("job=%d type=%s state=%s progress=%.2f priority=%d", p.Entity, p.JobType, p.State, p.Progress, p.Priority)
	if p.AssignedTo != nil {
		s += fmt.Sprintf(" agent=%d", *p.AssignedTo)
	}
	return s
}
