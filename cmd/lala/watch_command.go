package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"lala/internal/apiclient"
	"lala/internal/progress"
)

func newWatchCommand(ctx *commandContext) *cobra.Command {
	var untilDone bool

	cmd := &cobra.Command{
		Use:   "watch [file-id]",
		Short: "Stream pipeline progress events",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			fileID := ""
			if len(args) == 1 {
				fileID = strings.TrimSpace(args[0])
			}
			if untilDone && fileID == "" {
				return fmt.Errorf("--until-done requires a file id")
			}
			return ctx.withClient(func(client *apiclient.Client) error {
				out := cmd.OutOrStdout()
				printer := newEventPrinter(out, isTerminal(out))
				defer printer.finish()

				var doneErr error
				err := client.Watch(cmd.Context(), fileID, func(event progress.Event) bool {
					printer.print(event)
					if !untilDone || !event.Terminal() {
						return true
					}
					if event.Title == progress.TitleFailed {
						doneErr = fmt.Errorf("%s failed: %s", progress.Label(string(event.AssetKind)), event.Description)
						return false
					}
					if event.ReachedStage != "" {
						return false
					}
					file, err := client.GetFile(cmd.Context(), fileID)
					if err != nil {
						doneErr = err
						return false
					}
					if file.TargetStage == "" {
						doneErr = fmt.Errorf("%s completed but the target stage was dropped; check the daemon log", progress.Label(string(event.AssetKind)))
						return false
					}
					return true
				})
				if err != nil {
					return err
				}
				return doneErr
			})
		},
	}

	cmd.Flags().BoolVar(&untilDone, "until-done", false, "Exit once the file reaches its target stage or a job fails")
	return cmd
}

// eventPrinter redraws a single progress line on terminals and prints one
// line per event otherwise.
type eventPrinter struct {
	out     io.Writer
	tty     bool
	pending bool
}

func newEventPrinter(out io.Writer, tty bool) *eventPrinter {
	return &eventPrinter{out: out, tty: tty}
}

func (p *eventPrinter) print(event progress.Event) {
	line := formatEvent(event)
	if !p.tty {
		fmt.Fprintln(p.out, line)
		return
	}
	color := ansiBlue
	switch event.Title {
	case progress.TitleCompleted:
		color = ansiGreen
	case progress.TitleFailed:
		color = ansiRed
	}
	fmt.Fprintf(p.out, "\r\x1b[2K%s", colorize(line, color, true))
	p.pending = true
	if event.Terminal() {
		fmt.Fprintln(p.out)
		p.pending = false
	}
}

func (p *eventPrinter) finish() {
	if p.pending {
		fmt.Fprintln(p.out)
		p.pending = false
	}
}

func formatEvent(event progress.Event) string {
	parts := []string{
		shortID(event.FileID),
		progress.Label(string(event.AssetKind)),
		progress.Label(event.Title),
		formatProgress(event.Progress),
	}
	if desc := strings.TrimSpace(event.Description); desc != "" {
		parts = append(parts, desc)
	}
	return strings.Join(parts, "  ")
}
