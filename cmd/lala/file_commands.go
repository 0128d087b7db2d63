package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"lala/internal/api"
	"lala/internal/apiclient"
	"lala/internal/config"
	"lala/internal/progress"
)

func newUploadCommand(ctx *commandContext) *cobra.Command {
	var stage string

	cmd := &cobra.Command{
		Use:   "upload <recording>...",
		Short: "Upload recordings to the daemon",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			stage = strings.ToLower(strings.TrimSpace(stage))
			return ctx.withClient(func(client *apiclient.Client) error {
				out := cmd.OutOrStdout()
				for _, arg := range args {
					path, err := config.ExpandPath(arg)
					if err != nil {
						return err
					}
					file, err := client.Upload(cmd.Context(), path)
					if err != nil {
						return fmt.Errorf("upload %s: %w", arg, err)
					}
					fmt.Fprintf(out, "Uploaded %s as %s\n", file.OriginalFilename, file.ID)
					if stage == "" {
						continue
					}
					result, err := client.RequestStage(cmd.Context(), file.ID, stage)
					if err != nil {
						return fmt.Errorf("request %s for %s: %w", stage, file.ID, err)
					}
					fmt.Fprintln(out, describeStageResult(result))
				}
				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&stage, "stage", "s", "", "Request a stage (stems, midi, pdf) after uploading")
	return cmd
}

func newFilesCommand(ctx *commandContext) *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "files",
		Short: "List uploaded files with their pipeline status",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *apiclient.Client) error {
				summaries, err := client.Summaries(cmd.Context())
				if err != nil {
					return err
				}
				if jsonOutput {
					return writeJSON(cmd, summaries)
				}
				out := cmd.OutOrStdout()
				if len(summaries) == 0 {
					fmt.Fprintln(out, "No files uploaded")
					return nil
				}
				fmt.Fprintln(out, renderSummaries(summaries, isTerminal(out)))
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")
	return cmd
}

func renderSummaries(summaries []api.FileSummary, color bool) string {
	rows := make([][]string, 0, len(summaries))
	for _, s := range summaries {
		status := s.CurrentStatus
		if status != "" && s.CurrentAssetType != "" {
			status = fmt.Sprintf("%s (%s)", status, s.CurrentAssetType)
		}
		progressText := ""
		if s.CurrentStatus == "processing" {
			progressText = formatProgress(s.CurrentProgress)
		}
		rows = append(rows, []string{
			s.ID,
			s.OriginalFilename,
			s.CreatedAt,
			dash(s.TargetStage),
			yesNo(s.HasStems),
			yesNo(s.HasMidi),
			yesNo(s.HasPdf),
			colorize(dash(status), statusColor(s.CurrentStatus), color),
			dash(progressText),
		})
	}
	return renderTable(
		[]string{"ID", "File", "Uploaded", "Target", "Stems", "MIDI", "PDF", "Status", "Progress"},
		rows,
		[]columnAlignment{alignLeft, alignLeft, alignLeft, alignLeft, alignLeft, alignLeft, alignLeft, alignLeft, alignRight},
	)
}

func newAssetsCommand(ctx *commandContext) *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "assets <file-id>",
		Short: "List the assets of a file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *apiclient.Client) error {
				assets, err := client.ListAssets(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				if jsonOutput {
					return writeJSON(cmd, assets)
				}
				out := cmd.OutOrStdout()
				if len(assets) == 0 {
					fmt.Fprintln(out, "No assets")
					return nil
				}
				fmt.Fprintln(out, renderAssets(assets, isTerminal(out)))
				for _, asset := range assets {
					if asset.ErrorMessage != "" {
						fmt.Fprintf(out, "%s %s: %s\n", shortID(asset.ID), progress.Label(asset.AssetType), asset.ErrorMessage)
					}
				}
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")
	return cmd
}

func renderAssets(assets []api.Asset, color bool) string {
	rows := make([][]string, 0, len(assets))
	for _, a := range assets {
		rows = append(rows, []string{
			a.ID,
			progress.Label(a.AssetType),
			colorize(a.Status, statusColor(a.Status), color),
			dash(shortID(a.ParentAssetID)),
			a.CreatedAt,
		})
	}
	return renderTable([]string{"ID", "Type", "Status", "Parent", "Created"}, rows, nil)
}

func newDeleteCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <file-id>",
		Short: "Delete a file and every artifact derived from it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *apiclient.Client) error {
				if err := client.Delete(cmd.Context(), args[0]); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Deleted %s\n", args[0])
				return nil
			})
		},
	}
}

func newExportCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "export <asset-id> <destination>",
		Short: "Export a completed asset to a path on the daemon host or to s3:<key>",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *apiclient.Client) error {
				result, err := client.Export(cmd.Context(), args[0], args[1])
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Exported %s to %s\n", result.AssetID, result.Location)
				return nil
			})
		},
	}
}
