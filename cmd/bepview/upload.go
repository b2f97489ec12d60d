package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"bepview/internal/artifact"
	"bepview/internal/graph"
	"bepview/internal/render"
	"bepview/internal/upload"
	"bepview/internal/viewer"
)

func newUploadCmd() *cobra.Command {
	var svgOut string
	var serve bool

	cmd := &cobra.Command{
		Use:   "upload <file>",
		Short: "Upload a build event file and wait for processing",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			defer func() { _ = a.logger.Sync() }()

			path := args[0]
			data, err := os.ReadFile(path)
			if err != nil {
				return err
			}

			session := a.manager.Start(cmd.Context(), upload.File{
				Name:        filepath.Base(path),
				ContentType: contentTypeFor(path),
				Data:        data,
			}, func(p upload.Phase) {
				fmt.Fprintf(cmd.OutOrStdout(), "phase: %s\n", p)
			})

			if err := session.Wait(cmd.Context()); err != nil {
				session.Cancel()
				return err
			}
			if session.Phase() == upload.PhaseFailed {
				return session.LastError()
			}
			if lastErr := session.LastError(); lastErr != nil {
				// Partial artifact sets are rendered as available.
				fmt.Fprintf(cmd.OutOrStdout(), "warning: %s\n", lastErr)
			}

			set, ok := a.store.Current()
			if !ok {
				return fmt.Errorf("processing finished but no artifacts were retrieved")
			}
			printSummary(cmd, set)

			if svgOut != "" && set.Graph != nil {
				if err := writeGraphSVG(set.Graph, svgOut); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "graph written to %s\n", svgOut)
			}
			if serve {
				return runViewer(cmd.Context(), a)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&svgOut, "svg-out", "", "write the settled dependency graph as SVG to this path")
	cmd.Flags().BoolVar(&serve, "serve", false, "start the interactive viewer after processing")
	return cmd
}

func contentTypeFor(path string) string {
	if strings.EqualFold(filepath.Ext(path), ".json") {
		return "application/json"
	}
	return "application/octet-stream"
}

func printSummary(cmd *cobra.Command, set *artifact.Set) {
	out := cmd.OutOrStdout()
	if set.Summary != nil {
		fmt.Fprintf(out, "targets: %d  tests: %d  actions: %d\n",
			set.Summary.Targets, set.Summary.Tests, set.Summary.Actions)
	}
	if set.Graph != nil {
		fmt.Fprintf(out, "graph: %d nodes, %d edges\n", len(set.Graph.Nodes), len(set.Graph.Edges))
	}
	if set.ResourceUsage != nil {
		fmt.Fprintf(out, "resource usage: %d samples\n", set.ResourceUsage.Len())
	}
}

// writeGraphSVG runs the layout to quiescence and exports the final
// frame.
func writeGraphSVG(g *graph.Graph, path string) error {
	layout := graph.NewLayout(graph.DefaultLayoutConfig(), nil)
	ticks, err := layout.Start(g)
	if err != nil {
		return err
	}
	renderer := render.New(render.DefaultConfig())
	var final render.Frame
	renderer.Consume(g, ticks, func(f render.Frame) { final = f })
	return os.WriteFile(path, render.SVG(final), 0o644)
}

func runViewer(ctx context.Context, a *app) error {
	server := viewer.New(a.cfg.ViewerAddr, a.store, a.chat, a.logger)

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() { errCh <- server.Start() }()
	a.logger.Info("viewer ready", zap.String("addr", a.cfg.ViewerAddr))

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		return server.Shutdown(context.Background())
	}
}
