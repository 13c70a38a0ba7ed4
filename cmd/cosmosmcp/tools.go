package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/jonwraymond/cosmosmcp/registry"
	"github.com/jonwraymond/cosmosmcp/tooldoc"
)

func newToolsCommand(bm buildMeta) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tools",
		Short: "Inspect the tool catalogue",
	}

	list := &cobra.Command{
		Use:   "list",
		Short: "List every tool with its description",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := localApp(cmd, bm)
			if err != nil {
				return err
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			for _, t := range a.reg.List() {
				mode := "write"
				if t.Annotations != nil && t.Annotations.ReadOnlyHint {
					mode = "read"
				}
				fmt.Fprintf(tw, "%s\t%s\t%s\n", t.Name, mode, oneLine(t.Description))
			}
			return tw.Flush()
		},
	}

	describe := &cobra.Command{
		Use:   "describe <tool>",
		Short: "Show a tool's documentation",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := localApp(cmd, bm)
			if err != nil {
				return err
			}
			level, _ := cmd.Flags().GetString("level")
			doc, err := a.reg.Describe(args[0], tooldoc.DetailLevel(level))
			if err != nil {
				return err
			}
			return writeJSONIndent(cmd.OutOrStdout(), doc)
		},
	}
	describe.Flags().String("level", string(tooldoc.DetailFull), "summary, schema or full")

	search := &cobra.Command{
		Use:   "search <query>",
		Short: "Rank tools by relevance to a query",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := localApp(cmd, bm)
			if err != nil {
				return err
			}
			limit, _ := cmd.Flags().GetInt("limit")
			results, err := a.reg.Search(cmd.Context(), strings.Join(args, " "), limit)
			if err != nil {
				return err
			}
			for _, t := range results {
				fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\n", t.Name, oneLine(t.Description))
			}
			return nil
		},
	}
	search.Flags().Int("limit", 5, "maximum results")

	cmd.AddCommand(list, describe, search)
	return cmd
}

func newCallCommand(bm buildMeta) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "call <tool> [json-arguments]",
		Short: "Invoke one tool and print its result",
		Long: `Invoke one tool and print its result.

Without --remote the tool runs in process against the configured backend.
With --remote the call goes to a running server (http(s):// for streamable
HTTP, sse:// for the legacy SSE transport).`,
		Example: `  cosmosmcp call list_databases '{"account":"myaccount"}'
  cosmosmcp call --remote http://127.0.0.1:8080/mcp read_item \
    '{"account":"myaccount","database":"appdb","container":"users","itemID":"u1","partitionKey":"u1"}'`,
		Args: cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			callArgs := map[string]any{}
			if len(args) == 2 {
				if err := json.Unmarshal([]byte(args[1]), &callArgs); err != nil {
					return fmt.Errorf("arguments must be a JSON object: %w", err)
				}
			}
			remote, _ := cmd.Flags().GetString("remote")
			if remote != "" {
				headers, _ := cmd.Flags().GetStringToString("header")
				return callRemote(cmd.Context(), cmd.OutOrStdout(), registry.RemoteConfig{
					URL:     remote,
					Headers: headers,
				}, args[0], callArgs)
			}

			a, err := localApp(cmd, bm)
			if err != nil {
				return err
			}
			res, err := a.reg.Execute(cmd.Context(), args[0], callArgs)
			if err != nil {
				return err
			}
			text, err := registry.RenderResult(res)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), text)
			return err
		},
	}
	cmd.Flags().String("remote", "", "URL of a running server")
	cmd.Flags().StringToString("header", nil, "extra HTTP header for --remote, e.g. Authorization='Bearer ...'")
	return cmd
}

func callRemote(ctx context.Context, out io.Writer, cfg registry.RemoteConfig, tool string, args map[string]any) error {
	remote, err := registry.Dial(ctx, cfg)
	if err != nil {
		return err
	}
	defer remote.Close()

	res, err := remote.Call(ctx, tool, args)
	if err != nil {
		return err
	}
	if s, ok := res.(string); ok {
		_, err = fmt.Fprintln(out, s)
		return err
	}
	return writeJSONIndent(out, res)
}

// localApp builds an in-process app with logs discarded below warn.
func localApp(cmd *cobra.Command, bm buildMeta) (*app, error) {
	cfg, err := loadConfig(cmd, bm)
	if err != nil {
		return nil, err
	}
	if !cmd.Flags().Changed("log-level") {
		cfg.Log.Level = "warn"
	}
	return newApp(cfg, cmd.ErrOrStderr())
}

func writeJSONIndent(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func oneLine(s string) string {
	if i := strings.IndexAny(s, ".\n"); i > 0 {
		return s[:i]
	}
	return s
}
