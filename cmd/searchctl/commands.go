package main

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/kailas-cloud/searchdex/internal/app"
	"github.com/kailas-cloud/searchdex/internal/domain/entry"
	"github.com/kailas-cloud/searchdex/internal/version"
)

// maxLineSize bounds a single JSONL record.
const maxLineSize = 4 << 20

func newPingCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "ping",
		Short: "Check backend health",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return opts.withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				report := a.Health.Check(ctx)
				fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", report.Backend, report.Status)
				if !a.Search.IsAlive(ctx) {
					return fmt.Errorf("backend %s is not alive", report.Backend)
				}
				return nil
			})
		},
	}
}

func newQueryCmd(opts *globalOptions) *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "query <query> [params...]",
		Short: "Run a query and print matching entries",
		Example: `  searchctl query '@category:{c}' lamps
  searchctl query 'price:>{min}' 50 --json`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				resp, err := a.Search.Query(ctx, args[0], params(args[1:])...)
				if err != nil {
					return err //nolint:wrapcheck // classified by the facade
				}
				out := cmd.OutOrStdout()
				if jsonOutput {
					enc := json.NewEncoder(out)
					enc.SetIndent("", "  ")
					return enc.Encode(map[string]any{
						"took_ms": resp.Elapsed.Milliseconds(),
						"total":   resp.Total,
						"entries": resp.Entries,
					})
				}
				for _, e := range resp.Entries {
					line, err := json.Marshal(e)
					if err != nil {
						return fmt.Errorf("encode entry: %w", err)
					}
					fmt.Fprintln(out, string(line))
				}
				fmt.Fprintf(cmd.ErrOrStderr(), "%d of %d entries in %s\n", resp.Len(), resp.Total, resp.Elapsed)
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "print the full response as JSON")
	return cmd
}

func newAddCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "add <file.jsonl>",
		Short: "Index entries from a JSON Lines file (- for stdin)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var r io.Reader = cmd.InOrStdin()
			if args[0] != "-" {
				f, err := os.Open(args[0])
				if err != nil {
					return fmt.Errorf("open %s: %w", args[0], err)
				}
				defer f.Close()
				r = f
			}
			entries, err := readEntries(r)
			if err != nil {
				return err
			}
			if len(entries) == 0 {
				return fmt.Errorf("no entries in %s", args[0])
			}
			return opts.withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				ids, err := a.Search.AddAll(ctx, entries...)
				if err != nil {
					return err //nolint:wrapcheck // classified by the facade
				}
				for _, id := range ids {
					fmt.Fprintln(cmd.OutOrStdout(), id)
				}
				return nil
			})
		},
	}
}

func newDeleteCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>...",
		Short: "Delete entries by id",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				return a.Search.Delete(ctx, args...) //nolint:wrapcheck // classified by the facade
			})
		},
	}
}

func newDeleteQueryCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "delete-query <query> [params...]",
		Short: "Delete every entry matching a query",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				return a.Search.DeleteByQuery(ctx, args[0], params(args[1:])...) //nolint:wrapcheck // classified by the facade
			})
		},
	}
}

func newDeleteAllCmd(opts *globalOptions) *cobra.Command {
	var yes bool

	cmd := &cobra.Command{
		Use:   "delete-all",
		Short: "Delete every entry in the index",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if !yes {
				return fmt.Errorf("refusing to delete all entries without --yes")
			}
			return opts.withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				return a.Search.DeleteAll(ctx) //nolint:wrapcheck // classified by the facade
			})
		},
	}
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "confirm deletion")
	return cmd
}

func newCommitCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "commit",
		Short: "Make pending writes visible",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return opts.withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				return a.Search.Commit(ctx) //nolint:wrapcheck // classified by the facade
			})
		},
	}
}

func newRefreshCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "refresh",
		Short: "Optimize the index",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return opts.withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				return a.Search.Refresh(ctx) //nolint:wrapcheck // classified by the facade
			})
		},
	}
}

func newIndexCmd(opts *globalOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "index",
		Short: "Manage the backend index",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "ensure",
		Short: "Create the index from the configured schema if missing",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return opts.withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				if err := a.EnsureIndex(ctx); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s index ready\n", a.Config.Backend.Driver)
				return nil
			})
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "drop",
		Short: "Drop the index definition, keeping stored entries (redis only)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return opts.withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				return a.DropIndex(ctx)
			})
		},
	})
	return cmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			_, err := fmt.Fprintln(cmd.OutOrStdout(), version.String())
			return err
		},
	}
}

// params turns positional CLI arguments into template parameters.
func params(args []string) []any {
	out := make([]any, len(args))
	for i, a := range args {
		out[i] = a
	}
	return out
}

// readEntries decodes one JSON object per non-blank line.
func readEntries(r io.Reader) ([]entry.Entry, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), maxLineSize)

	var entries []entry.Entry
	line := 0
	for sc.Scan() {
		line++
		text := strings.TrimSpace(sc.Text())
		if text == "" {
			continue
		}
		var e entry.Entry
		if err := json.Unmarshal([]byte(text), &e); err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		entries = append(entries, e)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read entries: %w", err)
	}
	return entries, nil
}
