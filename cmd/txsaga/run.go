package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"

	"github.com/flowforge/txsaga/internal/flow"
	"github.com/flowforge/txsaga/internal/runner"
	"github.com/flowforge/txsaga/internal/saga"
	"github.com/flowforge/txsaga/internal/txstore"
	"github.com/robbyt/go-supervisor/supervisor"
	"github.com/urfave/cli/v3"
)

var runCmd = &cli.Command{
	Name:  "run",
	Usage: "Run a compiled flow as a supervised service against a demo handler",
	Flags: []cli.Flag{
		&cli.StringFlag{
			Name:     "flow",
			Aliases:  []string{"f"},
			Usage:    "Path to a TOML flow definition",
			Required: true,
		},
		&cli.StringFlag{
			Name:  "payload",
			Usage: "JSON object used as the initial payload for a single transaction submitted at startup",
			Value: "{}",
		},
		&cli.StringFlag{
			Name:  "idempotency-key",
			Usage: "Idempotency key for the startup transaction; a key is minted if omitted",
		},
		&cli.BoolFlag{
			Name:  "replay-logs",
			Usage: "Replay each transaction's captured log history to the configured log output after it settles",
		},
	},
	Action: runAction,
}

func runAction(ctx context.Context, cmd *cli.Command) error {
	logger := slog.Default().WithGroup("txsaga")

	source, err := os.ReadFile(cmd.String("flow"))
	if err != nil {
		return cli.Exit(fmt.Errorf("failed to read flow file: %w", err), 1)
	}

	dag, err := flow.LoadTOML(source)
	if err != nil {
		return cli.Exit(fmt.Errorf("failed to compile flow: %w", err), 1)
	}

	orchestrator, err := saga.NewOrchestrator(dag.Name, dagToDefinition(dag), demoHandler(logger))
	if err != nil {
		return cli.Exit(fmt.Errorf("failed to build orchestrator: %w", err), 1)
	}
	registerDemoListeners(orchestrator, logger)

	store := txstore.NewMemoryStore()

	requests := make(chan runner.TransactionRequest, 1)

	var payload any
	if err := json.Unmarshal([]byte(cmd.String("payload")), &payload); err != nil {
		return cli.Exit(fmt.Errorf("failed to parse --payload as JSON: %w", err), 1)
	}
	requests <- runner.TransactionRequest{
		IdempotencyKey: cmd.String("idempotency-key"),
		InitialPayload: payload,
	}
	close(requests)

	r, err := runner.New(orchestrator, store, requests, runner.WithLogger(logger))
	if err != nil {
		return cli.Exit(fmt.Errorf("failed to build runner: %w", err), 1)
	}

	super, err := supervisor.New(
		supervisor.WithRunnables(r),
		supervisor.WithLogHandler(slog.Default().Handler()),
		supervisor.WithContext(ctx),
	)
	if err != nil {
		return cli.Exit(fmt.Errorf("failed to build supervisor: %w", err), 1)
	}

	if err := super.Run(); err != nil {
		return cli.Exit(fmt.Errorf("supervisor exited with error: %w", err), 1)
	}

	replayLogs := cmd.Bool("replay-logs")
	for _, txn := range store.GetAll() {
		fmt.Printf("transaction %s: %s\n", txn.IdempotencyKey, txn.Status())
		if replayLogs {
			if err := txn.PlaybackLogs(slog.Default().Handler()); err != nil {
				logger.Warn("failed to replay transaction logs", "idempotencyKey", txn.IdempotencyKey, "error", err)
			}
		}
	}
	return nil
}

// dagToDefinition reconstructs a flow.Definition from a compiled DAG, since
// the orchestrator compiles its own DAG from a Definition rather than
// accepting a pre-compiled one directly.
func dagToDefinition(dag *flow.DAG) *flow.Definition {
	def := &flow.Definition{Name: dag.Name}
	for _, idx := range dag.RootChildren {
		def.Root = append(def.Root, dag.Nodes[idx].Action.Action)
	}
	for _, node := range dag.Nodes {
		def.Steps = append(def.Steps, node.Action)
	}
	return def
}

// demoHandler logs every dispatch and succeeds immediately, echoing the
// payload's data back as its response. It exists so `txsaga run` has
// something to drive without requiring a real side-effecting backend.
func demoHandler(logger *slog.Logger) saga.HandlerFunc {
	return func(ctx context.Context, payload saga.Payload) (any, error) {
		logger.Info("dispatch",
			"action", payload.Metadata.Action,
			"type", payload.Metadata.ActionType,
			"attempt", payload.Metadata.Attempt,
			"idempotencyKey", payload.Metadata.IdempotencyKey,
		)
		return payload.Data, nil
	}
}

func registerDemoListeners(o *saga.Orchestrator, logger *slog.Logger) {
	o.On(saga.EventFinish, func(txn *saga.Transaction, _ *saga.StepEventData) {
		logger.Info("transaction finished", "idempotencyKey", txn.IdempotencyKey, "status", txn.Status())
	})
	o.On(saga.EventFailed, func(txn *saga.Transaction, _ *saga.StepEventData) {
		logger.Warn("transaction failed", "idempotencyKey", txn.IdempotencyKey)
	})
	o.On(saga.EventReverted, func(txn *saga.Transaction, _ *saga.StepEventData) {
		logger.Warn("transaction reverted", "idempotencyKey", txn.IdempotencyKey)
	})
}
