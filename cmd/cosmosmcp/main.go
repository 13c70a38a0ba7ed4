// Command cosmosmcp serves Azure Cosmos DB operations as MCP tools.
package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"runtime"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/jonwraymond/cosmosmcp/config"
)

// version is set at build time:
//
//	go build -ldflags "-X main.version=1.0.0" ./cmd/cosmosmcp
var version string

// buildMeta holds version and build metadata.
type buildMeta struct {
	Version string
	GoOS    string
	GoArch  string
}

func newBuildMeta(v string) buildMeta {
	if v == "" {
		v = "dev"
	}
	return buildMeta{Version: v, GoOS: runtime.GOOS, GoArch: runtime.GOARCH}
}

func (m buildMeta) String() string {
	return fmt.Sprintf("cosmosmcp %s %s/%s", m.Version, m.GoOS, m.GoArch)
}

func newRootCommand(bm buildMeta) *cobra.Command {
	root := &cobra.Command{
		Use:           "cosmosmcp",
		Short:         "MCP server for Azure Cosmos DB",
		Long:          "cosmosmcp exposes Cosmos DB databases, containers, items and queries as MCP tools.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	pf := root.PersistentFlags()
	pf.String("config", "", "path to a YAML config file (default $"+config.EnvConfigPath+")")
	pf.String("backend", "", "store backend: cosmos, mongo or memory")
	pf.String("key-file", "", "file holding the account key")
	pf.Int("page-size", 0, "items per listing or query page")
	pf.String("log-level", "", "debug, info, warn or error")
	pf.String("log-format", "", "text or json")

	root.AddCommand(
		newServeCommand(bm),
		newToolsCommand(bm),
		newCallCommand(bm),
		&cobra.Command{
			Use:   "version",
			Short: "Print version and build metadata",
			Args:  cobra.NoArgs,
			Run: func(cmd *cobra.Command, args []string) {
				fmt.Fprintln(cmd.OutOrStdout(), bm.String())
			},
		},
	)
	return root
}

// loadConfig layers command-line flags over the file and environment.
func loadConfig(cmd *cobra.Command, bm buildMeta) (*config.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	if cfg.Server.Version == "dev" {
		cfg.Server.Version = bm.Version
	}
	applyFlags(cmd.Flags(), cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyFlags(fs *pflag.FlagSet, cfg *config.Config) {
	str := func(name string, dst *string) {
		if fs.Changed(name) {
			*dst, _ = fs.GetString(name)
		}
	}
	if fs.Changed("backend") {
		v, _ := fs.GetString("backend")
		cfg.Store.Backend = config.Backend(v)
	}
	if fs.Changed("transport") {
		v, _ := fs.GetString("transport")
		cfg.Server.Transport = config.Transport(v)
	}
	if fs.Changed("page-size") {
		cfg.Store.PageSize, _ = fs.GetInt("page-size")
	}
	if fs.Changed("call-timeout") {
		cfg.Server.CallTimeout, _ = fs.GetDuration("call-timeout")
	}
	str("key-file", &cfg.Store.KeyFile)
	str("log-level", &cfg.Log.Level)
	str("log-format", &cfg.Log.Format)
	str("http-addr", &cfg.Server.HTTPAddr)
}

// exitCodeErr carries a process exit code out of a command.
type exitCodeErr int

func (e exitCodeErr) Error() string { return fmt.Sprintf("exit %d", int(e)) }
func (e exitCodeErr) ExitCode() int { return int(e) }

// runApp runs the root command and returns the process exit code.
func runApp(args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	root := newRootCommand(newBuildMeta(version))
	root.SetArgs(args)
	root.SetIn(stdin)
	root.SetOut(stdout)
	root.SetErr(stderr)
	if err := root.Execute(); err != nil {
		var ec exitCodeErr
		if errors.As(err, &ec) {
			return ec.ExitCode()
		}
		fmt.Fprintln(stderr, "error:", err)
		return 1
	}
	return 0
}

func main() {
	os.Exit(runApp(os.Args[1:], os.Stdin, os.Stdout, os.Stderr))
}
