package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

func newStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status <file-id>",
		Short: "Show the processing status of an uploaded file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			defer func() { _ = a.logger.Sync() }()

			var resp struct {
				FileID           string `json:"file_id"`
				Status           string `json:"status"`
				OriginalFilename string `json:"original_filename"`
				ErrorMessage     string `json:"error_message"`
			}
			url := strings.TrimRight(a.cfg.ServerURL, "/") + "/upload/status/" + args[0]
			if err := a.tc.GetJSON(cmd.Context(), url, &resp); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s (%s): %s\n", resp.FileID, resp.OriginalFilename, resp.Status)
			if resp.ErrorMessage != "" {
				fmt.Fprintf(cmd.OutOrStdout(), "error: %s\n", resp.ErrorMessage)
			}
			return nil
		},
	}
}

func newChatCmd() *cobra.Command {
	var fileID string

	cmd := &cobra.Command{
		Use:   "chat <question>",
		Short: "Ask a natural-language question about a processed build",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			defer func() { _ = a.logger.Sync() }()

			answer, err := a.chat.Query(cmd.Context(), strings.Join(args, " "), fileID)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), answer.Text)
			if len(answer.Sources) > 0 {
				fmt.Fprintf(cmd.OutOrStdout(), "sources: %s\n", strings.Join(answer.Sources, ", "))
			}
			if answer.GraphUpdated {
				fmt.Fprintln(cmd.OutOrStdout(), "(the response included an updated graph)")
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&fileID, "file-id", "", "scope the question to one uploaded file")
	return cmd
}

func newServeCmd() *cobra.Command {
	var fileID string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the interactive graph viewer",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			defer func() { _ = a.logger.Sync() }()

			if fileID != "" {
				if _, err := a.chat.FetchGraph(cmd.Context(), fileID); err != nil {
					return err
				}
			}
			return runViewer(cmd.Context(), a)
		},
	}
	cmd.Flags().StringVar(&fileID, "file-id", "", "preload the graph of a processed file")
	return cmd
}
