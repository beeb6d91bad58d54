package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/hupe1980/agentorg"
	"github.com/hupe1980/agentorg/config"
	"github.com/hupe1980/agentorg/core"
	"github.com/hupe1980/agentorg/logging"
	"github.com/hupe1980/agentorg/metrics"
	"github.com/hupe1980/agentorg/snapshot"
	"github.com/hupe1980/agentorg/snapshot/sqlite"
)

type runFlags struct {
	orgPath   string
	goal      string
	provider  string
	dbPath    string
	timeout   time.Duration
	quiet     bool
	sops      map[string]string
	questions map[string]string
}

func newRunCmd() *cobra.Command {
	f := &runFlags{}
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run a goal through an organization",
		Long: `Hands a goal to the root worker of the organization and streams mail and
events until every task is completed or failed. Questions workers ask a human
are prompted on stdin.`,
		Example: `  agentorg run --goal "Publish a picture book about foxes"
  agentorg run --org org.yaml --provider anthropic --goal "Plan the launch" --db runs.db
  agentorg run --goal "Write a story" --ask Editor="Which audience?"`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runGoal(cmd, f)
		},
	}
	cmd.Flags().StringVar(&f.orgPath, "org", "", "Organization file (YAML); the built-in publishing house when empty")
	cmd.Flags().StringVarP(&f.goal, "goal", "g", "", "Goal for the root worker")
	cmd.Flags().StringVar(&f.provider, "provider", "", "Reasoning provider: heuristic, anthropic, bedrock or openai")
	cmd.Flags().StringVar(&f.dbPath, "db", "", "SQLite database for run snapshots")
	cmd.Flags().DurationVar(&f.timeout, "timeout", 10*time.Minute, "Abort the run after this long")
	cmd.Flags().BoolVarP(&f.quiet, "quiet", "q", false, "Only print the final task table and report")
	cmd.Flags().StringToStringVar(&f.sops, "sop", nil, "Heuristic provider: worker=SOP name to apply to new tasks")
	cmd.Flags().StringToStringVar(&f.questions, "ask", nil, "Heuristic provider: worker=question to ask a human once per task")
	_ = cmd.MarkFlagRequired("goal")
	return cmd
}

func loadOrg(path string) (config.OrgConfig, error) {
	if path == "" {
		return config.Default(), nil
	}
	return config.Load(path)
}

func newLogger(s *config.Settings) (*logging.StructuredLogger, error) {
	level, err := logging.ParseLevel(s.Log.Level)
	if err != nil {
		return nil, err
	}
	return logging.NewLogger(&logging.LoggerConfig{
		Level:     level,
		Format:    s.Log.Format,
		Output:    os.Stderr,
		Component: "agentorg",
	}), nil
}

func runGoal(cmd *cobra.Command, f *runFlags) error {
	out := cmd.OutOrStdout()

	settings, err := config.LoadSettings(settingsPath)
	if err != nil {
		return err
	}
	if f.provider != "" {
		settings.Provider.Name = f.provider
		if err := settings.Validate(); err != nil {
			return err
		}
	}
	if f.dbPath != "" {
		settings.Storage.DBPath = f.dbPath
	}

	logger, err := newLogger(settings)
	if err != nil {
		return err
	}

	cfg, err := loadOrg(f.orgPath)
	if err != nil {
		return err
	}
	for _, issue := range cfg.Validate() {
		printStatus(out, "⚠", issue.String(), eventColor)
	}

	limiter := core.NewCallLimiter(settings.Limits.MaxReasoningCalls)
	r, err := buildReasoner(settings, heuristicScript{sops: f.sops, questions: f.questions}, limiter, logger)
	if err != nil {
		return err
	}

	rec, err := metrics.New()
	if err != nil {
		return fmt.Errorf("create metrics: %w", err)
	}

	var store snapshot.Store
	if settings.Storage.DBPath != "" {
		db, err := sqlite.Open(settings.Storage.DBPath)
		if err != nil {
			return err
		}
		defer db.Close()
		store = db
	}

	humanCh := make(chan []core.HumanInputRequest, 1)
	sim := agentorg.New(cfg, r, func(o *agentorg.Options) {
		o.Logger = logger
		o.Metrics = rec
		o.Store = store
		o.MaxConcurrentReasoning = settings.Limits.MaxConcurrentReasoning
		o.MaxConversationTurns = settings.Limits.MaxConversationTurns
		o.MailboxSize = settings.Limits.MailboxSize
		o.Retry = agentorg.RetryPolicy{MaxAttempts: settings.Retry.MaxAttempts, Backoff: settings.Retry.Backoff}
		if settings.Provider.Name != "heuristic" {
			o.Limiter = limiter
		}
		if !f.quiet {
			o.OnMail = func(m core.Mail) { printMail(out, m) }
			o.OnEvent = func(ev core.Event) { printEvent(out, ev) }
		}
		o.OnHumanInput = func(pending []core.HumanInputRequest) {
			// Keep only the newest list; older ones are superseded.
			select {
			case <-humanCh:
			default:
			}
			humanCh <- pending
		}
	})

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	printStatus(out, "▶", fmt.Sprintf("Goal for %s: %s", sim.Orchestrator().Root(), f.goal), okColor)
	if _, err := sim.Start(ctx, f.goal); err != nil {
		return err
	}

	runErr := awaitRun(ctx, sim, humanCh, cmd.InOrStdin(), out)
	sim.Stop()

	_, _ = fmt.Fprintln(out)
	printTasks(out, sim.Orchestrator().Tasks())
	printReport(out, sim.Report())
	if store != nil {
		printStatus(out, "✓", "Saved run "+sim.RunID()+" to "+settings.Storage.DBPath, okColor)
	}
	return runErr
}

// awaitRun waits for the run to finish, answering human input requests from in.
func awaitRun(ctx context.Context, sim *agentorg.Simulation, humanCh <-chan []core.HumanInputRequest, in io.Reader, out io.Writer) error {
	lines := readLines(ctx, in)
	asked := map[string]bool{}
	var (
		queue  []core.HumanInputRequest
		asking *core.HumanInputRequest
	)

	for {
		if asking == nil && len(queue) > 0 {
			next := queue[0]
			queue = queue[1:]
			asking = &next
			asked[asking.ID] = true
			_, _ = askColor.Fprintf(out, "? %s asks: %s\n> ", asking.WorkerName, asking.Question)
		}

		// Input is only read while a question is open.
		var answers <-chan string
		if asking != nil {
			answers = lines
		}

		select {
		case <-sim.Done():
			return nil
		case <-ctx.Done():
			if errors.Is(ctx.Err(), context.DeadlineExceeded) {
				return fmt.Errorf("run did not complete: %w", ctx.Err())
			}
			return ctx.Err()
		case pending := <-humanCh:
			queue = queue[:0]
			for _, req := range pending {
				if !asked[req.ID] {
					queue = append(queue, req)
				}
			}
		case line, ok := <-answers:
			if !ok {
				return fmt.Errorf("input closed while %s waits for an answer", asking.WorkerName)
			}
			if err := sim.ProvideHumanInput(asking.ID, strings.TrimSpace(line)); err != nil {
				printStatus(out, "✗", err.Error(), failColor)
			}
			asking = nil
		}
	}
}

func readLines(ctx context.Context, in io.Reader) <-chan string {
	ch := make(chan string)
	go func() {
		defer close(ch)
		sc := bufio.NewScanner(in)
		for sc.Scan() {
			select {
			case ch <- sc.Text():
			case <-ctx.Done():
				return
			}
		}
	}()
	return ch
}
