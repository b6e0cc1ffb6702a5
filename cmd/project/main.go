// Command project manages the Clockify projects that stand for games.
//
//	project find [--strict] Hades
//	project add "Celeste 64"
//	project rename 65a1f0c2e4b0 "Celeste 64: Fragments"
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/sakif/playtracker/internal/clockify"
	"github.com/sakif/playtracker/internal/config"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := root(clientFromEnv).ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "project:", err)
		stop()
		os.Exit(1)
	}
}

func clientFromEnv() (*clockify.Client, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: cfg.LogLevel}))
	return clockify.New(clockify.Config{
		BaseURL:     cfg.ClockifyBaseURL,
		WorkspaceID: cfg.ClockifyWorkspace,
		APIKey:      cfg.ClockifyAPIKey,
	}, logger), nil
}

// root builds the command tree. newClient runs once a subcommand has
// parsed its arguments, so usage errors never need a configured workspace.
func root(newClient func() (*clockify.Client, error)) *cobra.Command {
	cmd := &cobra.Command{
		Use:           "project",
		Short:         "Manage the Clockify projects that stand for games",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.AddCommand(find(newClient), add(newClient), rename(newClient))
	return cmd
}

func find(newClient func() (*clockify.Client, error)) *cobra.Command {
	var strict bool
	cmd := &cobra.Command{
		Use:   "find NAME",
		Short: "Search projects by name",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := newClient()
			if err != nil {
				return err
			}
			projects, err := client.ProjectsByName(cmd.Context(), args[0], strict)
			if err != nil {
				return err
			}
			for _, p := range projects {
				fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\n", p.ID, p.Name)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&strict, "strict", false, "Only match the exact name.")
	return cmd
}

func add(newClient func() (*clockify.Client, error)) *cobra.Command {
	return &cobra.Command{
		Use:   "add NAME",
		Short: "Create a project",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := newClient()
			if err != nil {
				return err
			}
			p, err := client.AddProject(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\n", p.ID, p.Name)
			return nil
		},
	}
}

func rename(newClient func() (*clockify.Client, error)) *cobra.Command {
	return &cobra.Command{
		Use:   "rename PROJECT_ID NAME",
		Short: "Rename a project",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := newClient()
			if err != nil {
				return err
			}
			return client.UpdateProjectName(cmd.Context(), args[0], args[1])
		},
	}
}
