package cmd

import (
	"encoding/json"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/a5c-ai/gitagent/internal/agent"
	"github.com/a5c-ai/gitagent/internal/event"
	"github.com/a5c-ai/gitagent/internal/template"
	"github.com/a5c-ai/gitagent/internal/trigger"
)

var agentsCmd = &cobra.Command{
	Use:   "agents",
	Short: "Inspect the agent definitions in a workspace",
}

var agentsListCmd = &cobra.Command{
	Use:          "list",
	Short:        "List the agents that apply to an event type",
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		workspace, _ := cmd.Flags().GetString("workspace")
		eventType, _ := cmd.Flags().GetString("event-type")

		catalog := agent.NewCatalog(viper.GetString("agents-dir"), 0, GetLogger())
		defs := catalog.Discover(eventType, workspace)

		if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
			type row struct {
				Name        string `json:"name"`
				Type        string `json:"type"`
				Priority    int    `json:"priority"`
				Destination string `json:"destination"`
				File        string `json:"file"`
			}
			rows := make([]row, 0, len(defs))
			for _, def := range defs {
				rows = append(rows, row{
					Name:        def.Agent.Name,
					Type:        def.Agent.Type,
					Priority:    def.Priority,
					Destination: def.Output.Destination,
					File:        def.FilePath,
				})
			}
			out, err := json.MarshalIndent(rows, "", "  ")
			if err != nil {
				return err
			}
			fmt.Println(string(out))
			return nil
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "NAME\tTYPE\tPRIORITY\tDESTINATION\tFILE")
		for _, def := range defs {
			fmt.Fprintf(w, "%s\t%s\t%d\t%s\t%s\n",
				def.Agent.Name, def.Agent.Type, def.Priority,
				def.Output.Destination, def.FilePath)
		}
		return w.Flush()
	},
}

var agentsValidateCmd = &cobra.Command{
	Use:          "validate",
	Short:        "Validate every agent definition under the agents directory",
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		workspace, _ := cmd.Flags().GetString("workspace")
		root := filepath.Join(workspace, viper.GetString("agents-dir"))

		var checked, invalid int
		err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if d.IsDir() {
				return nil
			}
			switch filepath.Ext(path) {
			case ".yml", ".yaml":
			default:
				return nil
			}
			checked++
			if _, lerr := agent.Load(path, filepath.Base(filepath.Dir(path))); lerr != nil {
				invalid++
				fmt.Printf("FAIL  %s: %v\n", path, lerr)
			} else {
				fmt.Printf("OK    %s\n", path)
			}
			return nil
		})
		if err != nil {
			return fmt.Errorf("failed to walk %s: %w", root, err)
		}

		fmt.Printf("%d definitions checked, %d invalid\n", checked, invalid)
		if invalid > 0 {
			return fmt.Errorf("%d invalid agent definitions", invalid)
		}
		return nil
	},
}

var agentsTestCmd = &cobra.Command{
	Use:          "test [agent-file]",
	Short:        "Load one agent definition and dry-run it against an event",
	Args:         cobra.ExactArgs(1),
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		logger := GetLogger()
		actx := event.ContextFromEnv()

		eventType, _ := cmd.Flags().GetString("event-type")
		if eventType == "" {
			eventType = actx.EventName
		}

		def, err := agent.Load(args[0], eventType)
		if err != nil {
			return err
		}
		fmt.Printf("agent: %s (type %s, priority %d, destination %s)\n",
			def.Agent.Name, def.Agent.Type, def.Priority, def.Output.Destination)

		eventFile, _ := cmd.Flags().GetString("event-file")
		if eventFile == "" {
			return nil
		}
		data, err := os.ReadFile(eventFile)
		if err != nil {
			return fmt.Errorf("failed to read event file: %w", err)
		}
		ev, err := event.Parse(data)
		if err != nil {
			return err
		}

		renderer := template.NewRenderer(logger)
		evaluator := trigger.NewEvaluator(renderer, logger)
		shouldRun := evaluator.ShouldRun(def, ev, actx, nil, nil)
		fmt.Printf("should_run: %v\n", shouldRun)
		if !shouldRun {
			return nil
		}

		vars := map[string]interface{}{
			"Event":   ev,
			"Context": actx,
			"Agent":   def.Agent.Name,
			"Config":  def.Configuration,
		}
		prompt, err := renderer.Render(def.PromptTemplate, vars, actx.Workspace, nil)
		if err != nil {
			return err
		}
		fmt.Printf("rendered prompt:\n%s\n", prompt)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(agentsCmd)
	agentsCmd.AddCommand(agentsListCmd, agentsValidateCmd, agentsTestCmd)

	agentsListCmd.Flags().String("workspace", ".", "workspace root")
	agentsListCmd.Flags().String("event-type", "push", "event type to discover agents for")
	agentsListCmd.Flags().Bool("json", false, "print definitions as JSON")

	agentsValidateCmd.Flags().String("workspace", ".", "workspace root")

	agentsTestCmd.Flags().String("event-type", "", "event type (default $GITHUB_EVENT_NAME)")
	agentsTestCmd.Flags().String("event-file", "", "event payload to evaluate triggers against")
}
