package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/a5c-ai/gitagent/internal/agent"
	"github.com/a5c-ai/gitagent/internal/event"
	"github.com/a5c-ai/gitagent/internal/executor"
	"github.com/a5c-ai/gitagent/internal/githubapi"
	"github.com/a5c-ai/gitagent/internal/gitops"
	"github.com/a5c-ai/gitagent/internal/orchestrator"
	"github.com/a5c-ai/gitagent/internal/output"
	"github.com/a5c-ai/gitagent/internal/template"
	"github.com/a5c-ai/gitagent/internal/trigger"
	"github.com/a5c-ai/gitagent/internal/workflow"
)

var processCmd = &cobra.Command{
	Use:   "process",
	Short: "Process a source-control event and run the triggered agents",
	Long: `Process reads an event payload (from --event-file, $GITHUB_EVENT_PATH
or stdin), runs every agent whose triggers match, and prints a JSON run
summary on stdout.`,
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		logger := GetLogger()

		data, err := readEventPayload(cmd)
		if err != nil {
			return err
		}

		ev, err := event.Parse(data)
		if err != nil {
			return err
		}

		actx := event.ContextFromEnv()
		eventType, _ := cmd.Flags().GetString("event-type")
		if eventType == "" {
			eventType = actx.EventName
		}

		orch := buildOrchestrator(actx.Workspace, logger)
		run := orch.ProcessEvent(cmd.Context(), ev, eventType, actx)

		pretty, _ := cmd.Flags().GetBool("pretty")
		var summary []byte
		if pretty {
			summary, err = json.MarshalIndent(run, "", "  ")
		} else {
			summary, err = json.Marshal(run)
		}
		if err != nil {
			return fmt.Errorf("failed to encode run summary: %w", err)
		}

		if outputFile, _ := cmd.Flags().GetString("output-file"); outputFile != "" {
			if err := os.WriteFile(outputFile, summary, 0o644); err != nil {
				return fmt.Errorf("failed to write run summary: %w", err)
			}
		} else {
			fmt.Fprintln(os.Stdout, string(summary))
		}

		if !run.Success {
			return fmt.Errorf("run %s completed with failures", run.RunID)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(processCmd)

	processCmd.Flags().String("event-file", "", "event payload file (default $GITHUB_EVENT_PATH, '-' for stdin)")
	processCmd.Flags().String("event-type", "", "event type (default $GITHUB_EVENT_NAME)")
	processCmd.Flags().Bool("pretty", false, "indent the JSON run summary")
	processCmd.Flags().String("output-file", "", "write the run summary to a file instead of stdout")
}

func readEventPayload(cmd *cobra.Command) ([]byte, error) {
	eventFile, _ := cmd.Flags().GetString("event-file")
	if eventFile == "" {
		eventFile = os.Getenv("GITHUB_EVENT_PATH")
	}
	if eventFile == "" || eventFile == "-" {
		data, err := io.ReadAll(os.Stdin)
		if err != nil {
			return nil, fmt.Errorf("failed to read event from stdin: %w", err)
		}
		return data, nil
	}
	data, err := os.ReadFile(eventFile)
	if err != nil {
		return nil, fmt.Errorf("failed to read event file: %w", err)
	}
	return data, nil
}

// buildOrchestrator wires the full stack from configuration. The API
// client is optional; without a token the network destinations and
// pull request creation degrade to warnings.
func buildOrchestrator(workspace string, logger *slog.Logger) *orchestrator.Orchestrator {
	timeout := viper.GetDuration("execution-timeout")
	ttl := viper.GetDuration("cache-ttl")

	git := gitops.New(gitops.NewRunner(logger), workspace, logger)
	renderer := template.NewRenderer(logger)

	registry := executor.NewRegistry()
	cli := executor.NewCLIExecutor(timeout, logger)
	for _, t := range []string{agent.TypeClaude, agent.TypeGemini, agent.TypeCodex, agent.TypeCustom} {
		registry.Register(t, cli)
	}
	streamer := executor.NewProcessStreamer(viper.GetString("claude-sdk-command"), logger)
	registry.Register(agent.TypeClaudeSDK, executor.NewSDKExecutor(streamer, timeout, logger))

	var api githubapi.API
	if token := viper.GetString("github-token"); token != "" {
		client, err := githubapi.New(token, 30*time.Second, logger)
		if err != nil {
			logger.Warn("failed to build API client, network destinations disabled", "error", err)
		} else {
			api = client
		}
	} else {
		logger.Warn("no GITHUB_TOKEN configured, network destinations disabled")
	}

	deps := orchestrator.Deps{
		Catalog:   agent.NewCatalog(viper.GetString("agents-dir"), ttl, logger),
		Evaluator: trigger.NewEvaluator(renderer, logger),
		Renderer:  renderer,
		Registry:  registry,
		Router:    output.NewRouter(renderer, api, os.Stdout, logger),
		Git:       git,
		Workflow:  workflow.NewManager(git, api, renderer, logger),
		Logger:    logger,
	}
	settings := orchestrator.Settings{
		CommitHistoryCount: viper.GetInt("commit-history-count"),
		EnabledEvents:      viper.GetStringSlice("enabled-events"),
		DisabledEvents:     viper.GetStringSlice("disabled-events"),
	}
	return orchestrator.New(deps, settings)
}
