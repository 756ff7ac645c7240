/*
main.go - One-shot transfer run

PURPOSE:
  Runs the allocation engine once (cron, ops shell) and prints the replay
  document as JSON. Shares configuration with the server.

COMMAND-LINE FLAGS:
  All server flags (see config.RegisterFlags), plus:
  --apply        Write transfers (default: dry run)
  --run-id       Explicit run id
  --param k=v    Any run parameter, repeatable (--param cover_days=21)
  --params-json  JSON object of run parameters
  --log-run      Print the per-run log to stderr as it happens

PRECEDENCE:
  config engine.params < --params-json < --param < --apply/--run-id

EXIT CODES:
  0  Run completed
  1  Run failed (partial writes are listed in the output)
  2  Bad flags, configuration or parameters

EXAMPLES:
  transfer-engine --preset conservative --param store_filter_list=s1,s2
  transfer-engine --db-driver mysql --db-dsn "$DSN" --apply
*/
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/pflag"

	"github.com/pearcestephens/STOCK-TRANSFER-ENGINE-V3-sub000/allocation"
	"github.com/pearcestephens/STOCK-TRANSFER-ENGINE-V3-sub000/audit"
	"github.com/pearcestephens/STOCK-TRANSFER-ENGINE-V3-sub000/config"
	"github.com/pearcestephens/STOCK-TRANSFER-ENGINE-V3-sub000/engine"
	"github.com/pearcestephens/STOCK-TRANSFER-ENGINE-V3-sub000/factory"
	"github.com/pearcestephens/STOCK-TRANSFER-ENGINE-V3-sub000/replay"
	"github.com/pearcestephens/STOCK-TRANSFER-ENGINE-V3-sub000/store"
)

const (
	exitOK     = 0
	exitFailed = 1
	exitUsage  = 2
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	os.Exit(run(ctx, os.Args[1:], os.Stdout, os.Stderr))
}

// output is what the CLI prints: the replay document plus where it went.
type output struct {
	replay.Document
	ReplayDir string `json:"replay_dir,omitempty"`
	Error     string `json:"error,omitempty"`
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	flags := pflag.NewFlagSet("transfer-engine", pflag.ContinueOnError)
	flags.SetOutput(stderr)
	config.RegisterFlags(flags)
	apply := flags.Bool("apply", false, "write transfers (default: dry run)")
	runID := flags.String("run-id", "", "explicit run id")
	pairs := flags.StringArray("param", nil, "run parameter key=value, repeatable")
	paramsJSON := flags.String("params-json", "", "JSON object of run parameters")
	logRun := flags.Bool("log-run", false, "print the run log to stderr")
	if err := flags.Parse(args); err != nil {
		return exitUsage
	}

	cfg, err := config.Load(flags)
	if err != nil {
		fmt.Fprintf(stderr, "config: %v\n", err)
		return exitUsage
	}
	logger := config.NewLogger(cfg.App.LogLevel, stderr)

	params, err := buildParams(cfg, *paramsJSON, *pairs, flags.Changed("apply"), *apply, *runID)
	if err != nil {
		config.LogError(logger, "main", "buildParams", "params", nil, err)
		return exitUsage
	}
	if params.RunID == "" {
		params.RunID = engine.NewRunID(time.Now())
	}

	st, err := store.Open(ctx, cfg.Database.Driver, cfg.Database.ConnString())
	if err != nil {
		config.LogError(logger, "main", "run", "open", map[string]string{"driver": cfg.Database.Driver}, err)
		return exitFailed
	}
	defer st.Close()
	if err := st.Validate(ctx); err != nil {
		config.LogError(logger, "main", "run", "schema", map[string]string{"driver": cfg.Database.Driver}, err)
		return exitFailed
	}

	var sink logrus.FieldLogger = logger.WithField("run_id", params.RunID)
	if !*logRun {
		quiet := logrus.New()
		quiet.SetOutput(io.Discard)
		sink = quiet
	}
	e, err := engine.New(st, params, engine.WithLogger(audit.NewLogger(audit.ParseLevel(cfg.App.LogLevel), sink)))
	if err != nil {
		config.LogError(logger, "main", "run", "engine", nil, err)
		if allocation.IsClientError(err) {
			return exitUsage
		}
		return exitFailed
	}

	res, runErr := e.Execute(ctx)
	out := output{Document: replay.Capture(e, res, time.Now())}
	if runErr != nil {
		out.Error = runErr.Error()
	}

	writer := replay.NewWriter(cfg.Replay.Dir, replay.WithWorkbook(cfg.Replay.Workbook))
	if dir, err := writer.Write(out.Document); err != nil {
		config.LogError(logger, "main", "run", "replay", map[string]string{"run_id": params.RunID}, err)
	} else {
		out.ReplayDir = dir
	}

	enc := json.NewEncoder(stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(out); err != nil {
		config.LogError(logger, "main", "run", "output", nil, err)
		return exitFailed
	}
	if runErr != nil {
		return exitFailed
	}
	return exitOK
}

// buildParams layers config, --params-json, --param and the dedicated flags.
func buildParams(cfg config.Config, paramsJSON string, pairs []string, applySet, apply bool, runID string) (engine.Params, error) {
	base := factory.Merge(cfg.Engine.Params)
	if cfg.Engine.Preset != "" {
		base["preset"] = cfg.Engine.Preset
	}

	var fromJSON factory.Input
	if strings.TrimSpace(paramsJSON) != "" {
		in, err := factory.DecodeJSON(strings.NewReader(paramsJSON))
		if err != nil {
			return engine.Params{}, fmt.Errorf("failed to parse --params-json: %w", err)
		}
		fromJSON = in
	}

	fromPairs := factory.Input{}
	for _, pair := range pairs {
		k, v, ok := strings.Cut(pair, "=")
		if !ok || strings.TrimSpace(k) == "" {
			return engine.Params{}, fmt.Errorf("--param %q: want key=value", pair)
		}
		fromPairs[strings.TrimSpace(k)] = v
	}

	flagsIn := factory.Input{}
	if applySet {
		flagsIn["apply"] = apply
	}
	if runID != "" {
		flagsIn["run_id"] = runID
	}

	return factory.NewParamsFactory().FromInput(factory.Merge(base, fromJSON, fromPairs, flagsIn))
}
