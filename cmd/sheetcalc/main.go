// Command sheetcalc evaluates formulas, edits spreadsheet documents, and
// serves workbooks over HTTP.
package main

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"runtime/debug"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/sheetcalc/sheetcalc"
	"github.com/sheetcalc/sheetcalc/cmd/internal/cliutil"
)

// Exit codes.
const (
	exitOK       = 0 // success
	exitError    = 1 // user error or processing failure
	exitCircular = 2 // edit rejected as circular, or check found an inconsistency
)

const envPrefix = "SHEETCALC"

// Config keys, settable by flag, SHEETCALC_* environment variable, or the
// config file.
const (
	keyDocVersion = "doc-version"
	keyUpper      = "upper"
	keyDB         = "db"
	keyListen     = "listen"
	keyLogLevel   = "log-level"
)

type cli struct {
	v       *viper.Viper
	verbose int
	config  string
	stdout  io.Writer
	stderr  io.Writer
}

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	c := &cli{v: viper.New(), stdout: stdout, stderr: stderr}
	root := c.rootCommand()
	root.SetArgs(args)
	root.SetOut(stdout)
	root.SetErr(stderr)

	err := root.Execute()
	if err == nil {
		return exitOK
	}
	cliutil.PrintError(stderr, "%v", err)
	var circular *sheetcalc.CircularError
	if errors.As(err, &circular) || errors.Is(err, errInconsistent) {
		return exitCircular
	}
	return exitError
}

func (c *cli) rootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:   "sheetcalc",
		Short: "Spreadsheet formula engine",
		Long: `sheetcalc evaluates arithmetic formulas and edits spreadsheet documents.

Documents are JSON ({"cells": {...}, "Version": "..."}) or YAML, chosen by
file extension. Settings can also come from SHEETCALC_* environment variables
or a sheetcalc.yaml config file.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return c.loadConfig(cmd.Root().PersistentFlags())
		},
	}

	pf := root.PersistentFlags()
	pf.CountVarP(&c.verbose, "verbose", "v", "enable debug logging (-vv for trace)")
	pf.StringVar(&c.config, "config", "", "config file (default: ./sheetcalc.yaml if present)")
	pf.String(keyDocVersion, sheetcalc.DefaultVersion, "document version to read and write")
	pf.Bool(keyUpper, false, "treat cell names case-insensitively by upper-casing them")
	pf.String(keyLogLevel, "", "log level: trace, debug, info, warn, error")

	root.AddCommand(
		c.evalCommand(),
		c.setCommand(),
		c.getCommand(),
		c.showCommand(),
		c.checkCommand(),
		c.recalcCommand(),
		c.exportCommand(),
		c.serveCommand(),
		c.versionCommand(),
	)
	return root
}

// loadConfig binds flags, environment and the optional config file.
func (c *cli) loadConfig(flags *pflag.FlagSet) error {
	if err := c.v.BindPFlags(flags); err != nil {
		return err
	}
	c.v.SetEnvPrefix(envPrefix)
	c.v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	c.v.AutomaticEnv()

	if c.config != "" {
		c.v.SetConfigFile(c.config)
	} else {
		c.v.SetConfigName("sheetcalc")
		c.v.SetConfigType("yaml")
		c.v.AddConfigPath(".")
	}
	if err := c.v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if c.config != "" || !errors.As(err, &notFound) {
			return fmt.Errorf("config: %w", err)
		}
	}
	return nil
}

// logger returns the configured logger, or nil when logging is off.
// --log-level wins over -v.
func (c *cli) logger() *slog.Logger {
	level, ok := c.logLevel()
	if !ok {
		return nil
	}
	handler := log.NewWithOptions(c.stderr, log.Options{
		Level:           level,
		ReportTimestamp: true,
	})
	return slog.New(handler)
}

func (c *cli) logLevel() (log.Level, bool) {
	switch strings.ToLower(c.v.GetString(keyLogLevel)) {
	case "trace":
		return log.Level(sheetcalc.LevelTrace), true
	case "debug":
		return log.DebugLevel, true
	case "info":
		return log.InfoLevel, true
	case "warn":
		return log.WarnLevel, true
	case "error":
		return log.ErrorLevel, true
	}
	switch {
	case c.verbose >= 2:
		return log.Level(sheetcalc.LevelTrace), true
	case c.verbose == 1:
		return log.DebugLevel, true
	}
	return 0, false
}

// sheetOptions returns the spreadsheet options derived from the config.
func (c *cli) sheetOptions() []sheetcalc.Option {
	opts := []sheetcalc.Option{
		sheetcalc.WithVersion(c.v.GetString(keyDocVersion)),
	}
	if c.v.GetBool(keyUpper) {
		opts = append(opts, sheetcalc.WithNormalizer(strings.ToUpper))
	}
	if logger := c.logger(); logger != nil {
		opts = append(opts, sheetcalc.WithLogger(logger))
	}
	return opts
}

func (c *cli) versionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			version := "(devel)"
			if info, ok := debug.ReadBuildInfo(); ok && info.Main.Version != "" {
				version = info.Main.Version
			}
			fmt.Fprintf(cmd.OutOrStdout(), "sheetcalc %s\n", version)
		},
	}
}
