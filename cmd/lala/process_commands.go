package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"lala/internal/api"
	"lala/internal/apiclient"
	"lala/internal/progress"
)

func newProcessCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "process <file-id> <stems|midi|pdf>",
		Short: "Drive a file toward a pipeline stage",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *apiclient.Client) error {
				result, err := client.RequestStage(cmd.Context(), args[0], args[1])
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), describeStageResult(result))
				return nil
			})
		},
	}
}

func describeStageResult(result api.StageResult) string {
	switch result.Action {
	case "satisfied":
		return fmt.Sprintf("%s: %s already available", result.FileID, result.Stage)
	case "requeue":
		return fmt.Sprintf("%s: re-queued %s toward %s", result.FileID, progress.Label(result.AssetType), result.Stage)
	default:
		return fmt.Sprintf("%s: queued %s toward %s", result.FileID, progress.Label(result.AssetType), result.Stage)
	}
}

func newCancelCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "cancel <file-id>",
		Short: "Cancel queued and running work for a file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *apiclient.Client) error {
				result, err := client.Cancel(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				if result.Deleted == 0 && result.Cancelled == 0 {
					fmt.Fprintf(out, "%s: nothing to cancel\n", result.FileID)
					return nil
				}
				fmt.Fprintf(out, "%s: removed %d queued, cancelled %d running\n", result.FileID, result.Deleted, result.Cancelled)
				return nil
			})
		},
	}
}
