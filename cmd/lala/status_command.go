package main

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"lala/internal/api"
	"lala/internal/apiclient"
	"lala/internal/progress"
)

const statusLabelWidth = 14

func newStatusCommand(ctx *commandContext) *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show daemon, worker and tool status",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *apiclient.Client) error {
				status, err := client.Status(cmd.Context())
				if err != nil {
					return err
				}
				if jsonOutput {
					return writeJSON(cmd, status)
				}
				out := cmd.OutOrStdout()
				renderStatus(out, status, isTerminal(out))
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")
	return cmd
}

func renderStatus(out io.Writer, status api.DaemonStatus, color bool) {
	line := func(label, value string) {
		fmt.Fprintf(out, "  %-*s %s\n", statusLabelWidth, label+":", value)
	}

	fmt.Fprintln(out, colorize("== Daemon ==", ansiBlue, color))
	line("PID", fmt.Sprintf("%d", status.PID))
	line("Version", dash(status.Version))
	line("Started", dash(status.StartedAt))
	line("Database", status.DatabasePath)
	line("Recovered", fmt.Sprintf("%d interrupted job(s)", status.Recovered))
	line("Watchers", fmt.Sprintf("%d", status.Subscribers))
	if health := status.Health; health != nil {
		integrity := colorize(health.Integrity, ansiGreen, color)
		if health.Integrity != "ok" {
			integrity = colorize(health.Integrity, ansiRed, color)
		}
		line("Integrity", integrity)
		line("Files", fmt.Sprintf("%d (%d missing artifact(s))", health.Files, health.MissingFiles))
	}

	worker := status.Worker
	fmt.Fprintln(out, colorize("== Worker ==", ansiBlue, color))
	state := colorize("running", ansiGreen, color)
	if !worker.Running {
		state = colorize("stopped", ansiYellow, color)
	}
	line("State", state)
	line("Processed", fmt.Sprintf("%d", worker.Processed))
	if job := worker.CurrentJob; job != nil {
		line("Current", fmt.Sprintf("%s %s %s", shortID(job.FileID), progress.Label(job.AssetType), formatProgress(job.Progress)))
	} else {
		line("Current", "idle")
	}
	if job := worker.LastJob; job != nil {
		line("Last", fmt.Sprintf("%s %s %s", shortID(job.FileID), progress.Label(job.AssetType), dash(job.Outcome)))
	}
	if worker.LastError != "" {
		line("Last error", colorize(worker.LastError, ansiRed, color))
	}
	line("Assets", formatStats(worker.AssetStats))

	fmt.Fprintln(out, colorize("== Tools ==", ansiBlue, color))
	for _, dep := range status.Dependencies {
		state := colorize("[OK]", ansiGreen, color)
		if !dep.Available {
			state = colorize("[MISSING]", ansiRed, color)
		}
		line(dep.Name, fmt.Sprintf("%s %s", state, dep.Detail))
	}
}

func formatStats(stats map[string]int) string {
	keys := make([]string, 0, len(stats))
	for k := range stats {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s=%d", k, stats[k]))
	}
	return dash(strings.Join(parts, " "))
}
