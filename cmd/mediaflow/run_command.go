package main

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"mediaflow/internal/deps"
	"mediaflow/internal/ledger"
	"mediaflow/internal/logging"
	"mediaflow/internal/pipeline"
	"mediaflow/internal/runlock"
	"mediaflow/internal/workflow"
)

func newRunCommand(ctx *commandContext) *cobra.Command {
	var sourceFile string
	var concurrency int
	var skipDeps bool

	cmd := &cobra.Command{
		Use:   "run [source...]",
		Short: "Run sources through the pipeline",
		Long: "Run fetches, converts, transcribes, post-processes, and persists each source.\n" +
			"Sources are URLs or local paths. Work already on disk is reused, so an\n" +
			"interrupted run can be repeated with the same sources.",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := ctx.configValue()
			if cfg == nil {
				return fmt.Errorf("configuration not loaded")
			}
			if concurrency > 0 {
				cfg.Workflow.Concurrency = concurrency
			}

			sources, err := collectSources(args, sourceFile)
			if err != nil {
				return err
			}
			if len(sources) == 0 {
				return fmt.Errorf("no sources given; pass them as arguments or with --file")
			}

			lock, err := runlock.Acquire(cfg.Paths.WorkDir)
			if err != nil {
				return err
			}
			defer func() { _ = lock.Release() }()

			if !skipDeps {
				if missing := deps.MissingRequired(deps.Check(cfg)); len(missing) > 0 {
					names := make([]string, 0, len(missing))
					for _, m := range missing {
						names = append(names, fmt.Sprintf("%s (%s)", m.Name, m.Detail))
					}
					return fmt.Errorf("missing required dependencies: %s; see `mediaflow deps`", strings.Join(names, ", "))
				}
			}

			logger, err := logging.NewFromConfig(cfg)
			if err != nil {
				return fmt.Errorf("init logger: %w", err)
			}

			store, err := ledger.Open(cfg)
			if err != nil {
				return fmt.Errorf("open ledger: %w", err)
			}
			defer store.Close()

			runCtx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer cancel()

			orchestrator, err := workflow.Wire(runCtx, cfg, store, logger)
			if err != nil {
				return err
			}

			report, runErr := orchestrator.Run(runCtx, sources)
			out := cmd.OutOrStdout()
			printRunReport(out, report, shouldColorize(out))
			if runErr != nil {
				return runErr
			}
			if report.Totals.Failed > 0 {
				return fmt.Errorf("%d of %d items failed", report.Totals.Failed, report.Totals.Items)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&sourceFile, "file", "f", "", "Read sources from a file, one per line (- for stdin)")
	cmd.Flags().IntVar(&concurrency, "concurrency", 0, "Override workflow.concurrency for this run")
	cmd.Flags().BoolVar(&skipDeps, "skip-deps-check", false, "Do not verify external tools before running")
	return cmd
}

// collectSources merges positional sources with those listed in path.
// Blank lines and lines starting with # are ignored.
func collectSources(args []string, path string) ([]string, error) {
	var sources []string
	for _, arg := range args {
		if trimmed := strings.TrimSpace(arg); trimmed != "" {
			sources = append(sources, trimmed)
		}
	}
	path = strings.TrimSpace(path)
	if path == "" {
		return sources, nil
	}

	var r io.Reader
	if path == "-" {
		r = os.Stdin
	} else {
		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("open source list: %w", err)
		}
		defer f.Close()
		r = f
	}

	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		sources = append(sources, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read source list: %w", err)
	}
	return sources, nil
}

func printRunReport(out io.Writer, report workflow.RunReport, colorize bool) {
	rows := make([][]string, 0, len(report.Items))
	for _, item := range report.Items {
		status := string(item.Status)
		if item.Status == pipeline.StatusDone && !item.Worked {
			status = "skipped"
		}
		stage := item.Stage
		if item.FailedStage != "" {
			stage = item.FailedStage
		}
		rows = append(rows, []string{
			item.Source,
			colorStatus(status, colorize),
			stage,
			string(item.Kind),
			item.Message,
		})
	}
	if len(rows) > 0 {
		fmt.Fprintln(out, renderTable(
			[]string{"Source", "Status", "Stage", "Error", "Message"},
			rows,
			[]columnAlignment{alignLeft, alignLeft, alignLeft, alignLeft, alignLeft},
		))
	}

	if len(report.Stages) > 0 {
		stageRows := make([][]string, 0, len(report.Stages))
		for _, s := range report.Stages {
			stageRows = append(stageRows, []string{
				s.Stage.String(),
				strconv.Itoa(s.Succeeded),
				strconv.Itoa(s.Skipped),
				strconv.Itoa(s.Failed),
				yesNo(s.TimedOut),
				s.Duration.Round(time.Millisecond).String(),
			})
		}
		fmt.Fprintln(out, renderTable(
			[]string{"Stage", "Succeeded", "Skipped", "Failed", "Timed Out", "Duration"},
			stageRows,
			[]columnAlignment{alignLeft, alignRight, alignRight, alignRight, alignLeft, alignRight},
		))
	}

	t := report.Totals
	fmt.Fprintf(out, "Run %s: %d items, %d succeeded, %d skipped, %d failed, %d pending\n",
		report.RunID, t.Items, t.Succeeded, t.Skipped, t.Failed, t.Pending)
	if report.Tier != "" {
		fmt.Fprintf(out, "Transcription tier: %s\n", report.Tier)
	}
	fmt.Fprintf(out, "Elapsed: %s\n", report.Duration.Round(time.Millisecond))
}
