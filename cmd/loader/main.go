package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"aligncall/internal/app"
	"aligncall/internal/bootstrap"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:   "loader",
		Short: "Bulk loads for the campaign service",
		Long: `loader migrates the database and imports the clinic directory and the
knowledge corpus the phone agent answers from.

Connection settings come from the same config file and environment variables
as the server (CONFIG_FILE, MYSQL_*, REDIS_*, KNOWLEDGE_*, LLM_*).`,
		SilenceUsage: true,
	}
	root.AddCommand(newMigrateCommand())
	root.AddCommand(newGeoCommand())
	root.AddCommand(newKnowledgeCommand())
	root.AddCommand(newAskCommand())
	return root
}

// withApp runs fn against storage-only services and closes them afterwards.
func withApp(cmd *cobra.Command, fn func(ctx context.Context, a *bootstrap.App) error) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := bootstrap.NewLoader(ctx)
	if err != nil {
		return err
	}
	defer a.Close()
	return fn(ctx, a)
}

func newMigrateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update database tables",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(context.Context, *bootstrap.App) error {
				fmt.Fprintln(cmd.OutOrStdout(), "tables migrated")
				return nil
			})
		},
	}
}

func newGeoCommand() *cobra.Command {
	var replace bool
	cmd := &cobra.Command{
		Use:   "geo <file.xlsx>",
		Short: "Import the pincode and clinic directory",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("read %s failed: %w", args[0], err)
			}
			return withApp(cmd, func(ctx context.Context, a *bootstrap.App) error {
				res, err := a.Services.Geo.Load(ctx, data, replace)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "loaded %d records, dropped %d rows\n", res.Loaded, res.Dropped)
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&replace, "replace", true, "clear the existing directory first")
	return cmd
}

func newKnowledgeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "knowledge <file>...",
		Short: "Embed and store knowledge files (json, txt, md, pdf)",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(ctx context.Context, a *bootstrap.App) error {
				for _, path := range args {
					data, err := os.ReadFile(path)
					if err != nil {
						return fmt.Errorf("read %s failed: %w", path, err)
					}
					res, err := a.Services.Knowledge.IngestFile(ctx, path, data)
					if err != nil {
						return fmt.Errorf("%s: %w", path, err)
					}
					fmt.Fprintf(cmd.OutOrStdout(), "%s: %d chunks (dimension %d)\n", res.Source, res.ChunkCount, res.Dimension)
				}
				return nil
			})
		},
	}
}

func newAskCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "ask <question>",
		Short: "Answer a question the way the phone agent would",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(ctx context.Context, a *bootstrap.App) error {
				res := a.Services.Tools.Dispatch(ctx, app.ToolCall{
					ID:        "cli",
					Name:      app.ToolKnowledgeLookup,
					Arguments: map[string]string{"query": args[0]},
				})
				fmt.Fprintln(cmd.OutOrStdout(), res.Result)
				return nil
			})
		},
	}
}
