package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/permkit-dev/permkit/internal/application/services"
	"github.com/permkit-dev/permkit/internal/infrastructure/config"
	"github.com/permkit-dev/permkit/internal/infrastructure/platform"
)

var (
	runInteractive  bool
	runStoredGrants bool
	runMissingOnly  bool
)

// runCmd executes a scenario file against the engine.
var runCmd = &cobra.Command{
	Use:   "run <scenario.yaml>",
	Short: "Run a permission scenario",
	Long: `Run loads a scenario file, builds a fresh engine with the hosts,
strategies, and standing grants it declares, and drives the steps through the
coordinator. Each gated call reports whether it was invoked or suppressed.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runScenario(cmd, args[0])
	},
}

func init() {
	runCmd.Flags().BoolVarP(&runInteractive, "interactive", "i", false, "prompt for undecided grant requests")
	runCmd.Flags().BoolVar(&runStoredGrants, "stored-grants", false, "seed standing grants from the grants store")
	runCmd.Flags().BoolVar(&runMissingOnly, "missing-only", false, "request only capabilities that are not yet granted")
	rootCmd.AddCommand(runCmd)
}

func runScenario(cmd *cobra.Command, path string) error {
	scenario, err := config.NewScenarioLoader().LoadScenario(path)
	if err != nil {
		return err
	}

	if cmd.Flags().Changed("missing-only") {
		scenario.RequestMissingOnly = runMissingOnly
	}

	if runStoredGrants {
		store := platform.NewGrantStore(viper.GetString("grants_file"))
		stored, err := store.Load()
		if err != nil {
			return err
		}
		for _, id := range stored {
			scenario.Grants = append(scenario.Grants, string(id))
		}
	}

	var opts []services.RunnerOption
	if runInteractive {
		prompter := platform.NewTerminalPrompter()
		if !prompter.IsInteractive() {
			return fmt.Errorf("--interactive requires a terminal")
		}
		opts = append(opts, services.WithFallbackDecision(prompter.Decide))
	}

	report, err := services.NewScenarioRunner(opts...).Run(cmd.Context(), scenario)
	if err != nil {
		return err
	}

	printReport(report)
	return nil
}

func printReport(report *services.ScenarioReport) {
	invoked := 0
	for _, call := range report.Calls {
		status := "suppressed"
		switch {
		case call.Invoked:
			status = "invoked"
			invoked++
		case call.Error != "":
			status = "error: " + call.Error
		}
		fmt.Fprintf(os.Stdout, "step %d  host=%s  strategy=%s  %v  %s\n",
			call.Step, call.Host, call.Strategy, call.Capabilities, status)
	}

	fmt.Fprintf(os.Stdout, "\n%d calls, %d invoked, %d suppressed, %d abandoned\n",
		len(report.Calls), invoked, len(report.Calls)-invoked, report.Abandoned)
}
