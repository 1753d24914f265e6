package cli

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/itswl/balance-alert/internal/config"
	"github.com/itswl/balance-alert/pkg/monitor"
)

var (
	checkProject string
	checkDryRun  bool
)

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Run one check cycle and print the results",
	RunE:  runCheck,
}

func init() {
	rootCmd.AddCommand(checkCmd)
	checkCmd.Flags().StringVar(&checkProject, "project", "", "check a single project by name")
	checkCmd.Flags().BoolVar(&checkDryRun, "dry-run", false, "evaluate alarms without sending notifications")
}

func runCheck(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	if checkProject != "" {
		var kept []config.ProjectConfig
		for _, pc := range cfg.Projects {
			if pc.Name == checkProject {
				kept = append(kept, pc)
			}
		}
		if len(kept) == 0 {
			return fmt.Errorf("no project named %q in config", checkProject)
		}
		cfg.Projects = kept
	}

	eng, err := initEngine(cfg, checkDryRun, true)
	if err != nil {
		return err
	}
	defer eng.close()

	summary, err := eng.orchestrator.RunCycle(cmd.Context(), monitor.TriggerManual)
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "PROJECT\tPROVIDER\tSTATUS\tVALUE\tTHRESHOLD\tALARM\n")
	for _, r := range eng.orchestrator.State().Results() {
		status := "ok"
		value := fmt.Sprintf("%.2f %s", r.Result.Value, r.Result.Currency)
		if !r.Result.Success {
			status = "failed"
			value = r.Result.Err
		}
		alarm := ""
		if r.NeedAlarm {
			alarm = "LOW"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%.2f\t%s\n",
			r.Project.Name, r.Project.Provider, status, value, r.Project.Threshold, alarm)
	}
	w.Flush()

	fmt.Printf("\n%d checked, %d succeeded, %d failed, %d below threshold (%.2fs)\n",
		summary.Checked, summary.Succeeded, summary.Failed, summary.Alarmed,
		summary.Duration.Seconds())
	if summary.DryRun {
		fmt.Println("dry-run: notifications were suppressed")
	}
	return nil
}
