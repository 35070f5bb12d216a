package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/dshills/strata/internal/config"
	"github.com/dshills/strata/internal/config/layer"
)

// envPrefix names the environment variables that stand in for unset flags.
const envPrefix = "STRATA_"

// globalOptions holds the persistent flags shared by every command.
type globalOptions struct {
	dirs      []string
	app       string
	vars      []string
	variables []string
	strategy  string
	separator string
	envPrefix string
	logLevel  string
	logFormat string

	stdout io.Writer
	stderr io.Writer
	logger *slog.Logger
}

func newRootCmd(stdout, stderr io.Writer) *cobra.Command {
	opts := &globalOptions{stdout: stdout, stderr: stderr}

	cmd := &cobra.Command{
		Use:   "strata",
		Short: "Inspect layered, cascaded configuration",
		Long: `strata resolves configuration through the standard layers:

  runtime > remote > override > environment > application > libraries > defaults

Resources are read from --dir in TOML, YAML, JSON or .properties form and
cascaded by the variables given with --var, so --app app --var env=prod
loads app-prod ahead of app. Unset flags fall back to STRATA_* variables,
for example STRATA_DIR or STRATA_LOG_LEVEL.`,
		Version:       fmt.Sprintf("%s (commit %s, built %s)", version, commit, date),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if err := applyEnvDefaults(cmd.Flags()); err != nil {
				return err
			}
			logger, err := newLogger(opts.stderr, opts.logLevel, opts.logFormat)
			if err != nil {
				return err
			}
			opts.logger = logger
			return nil
		},
	}
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)

	flags := cmd.PersistentFlags()
	flags.StringSliceVarP(&opts.dirs, "dir", "d", nil, "Resource search directory (repeatable, in lookup order)")
	flags.StringVarP(&opts.app, "app", "a", "", "Application resource name")
	flags.StringArrayVar(&opts.vars, "var", nil, "Cascade variable as name=value (repeatable, in order)")
	flags.StringSliceVar(&opts.variables, "variable", nil, "Cascade variable resolved from configuration")
	flags.StringVar(&opts.strategy, "strategy", "concat", "Cascade strategy (concat, suffix, cross, none)")
	flags.StringVar(&opts.separator, "separator", "-", "Cascade separator")
	flags.StringVar(&opts.envPrefix, "env-prefix", "", "Load environment variables with this prefix")
	flags.StringVar(&opts.logLevel, "log-level", "warn", "Log level (debug, info, warn, error)")
	flags.StringVar(&opts.logFormat, "log-format", "text", "Log format (text, json)")

	cmd.AddCommand(
		newCandidatesCmd(opts),
		newGetCmd(opts),
		newDumpCmd(opts),
		newBindCmd(opts),
		newWatchCmd(opts),
	)
	return cmd
}

// applyEnvDefaults sets every flag the user did not pass from its
// STRATA_* environment variable, if present.
func applyEnvDefaults(flags *pflag.FlagSet) error {
	var firstErr error
	flags.VisitAll(func(f *pflag.Flag) {
		if f.Changed || firstErr != nil {
			return
		}
		name := envPrefix + strings.ToUpper(strings.ReplaceAll(f.Name, "-", "_"))
		value, ok := os.LookupEnv(name)
		if !ok {
			return
		}
		if err := flags.Set(f.Name, value); err != nil {
			firstErr = fmt.Errorf("%s: %w", name, err)
		}
	})
	return firstErr
}

func newLogger(w io.Writer, level, format string) (*slog.Logger, error) {
	var lvl slog.Level
	switch strings.ToLower(level) {
	case "debug":
		lvl = slog.LevelDebug
	case "info":
		lvl = slog.LevelInfo
	case "warn", "warning":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		return nil, fmt.Errorf("invalid log level %q (must be debug, info, warn, or error)", level)
	}

	handlerOpts := &slog.HandlerOptions{Level: lvl}
	switch strings.ToLower(format) {
	case "text", "":
		return slog.New(slog.NewTextHandler(w, handlerOpts)), nil
	case "json":
		return slog.New(slog.NewJSONHandler(w, handlerOpts)), nil
	default:
		return nil, fmt.Errorf("invalid log format %q (must be text or json)", format)
	}
}

// parsePairs splits name=value arguments, keeping their order.
func parsePairs(pairs []string, flag string) (names, values []string, err error) {
	for _, p := range pairs {
		name, value, ok := strings.Cut(p, "=")
		name = strings.TrimSpace(name)
		if !ok || name == "" {
			return nil, nil, fmt.Errorf("--%s %q: want name=value", flag, p)
		}
		names = append(names, name)
		values = append(values, value)
	}
	return names, values, nil
}

// cascadeVars returns the declared cascade variable names and the values
// given on the command line.
func (o *globalOptions) cascadeVars() ([]string, map[string]string, error) {
	names, values, err := parsePairs(o.vars, "var")
	if err != nil {
		return nil, nil, err
	}
	given := make(map[string]string, len(names))
	for i, n := range names {
		given[n] = values[i]
	}
	for _, v := range o.variables {
		if _, ok := given[v]; !ok {
			names = append(names, v)
		}
	}
	return names, given, nil
}

// openRoot builds the configuration root the flags describe. Values given
// with --var are placed in an override layer before the application is
// loaded, so they select its cascade candidates.
func (o *globalOptions) openRoot(extra ...layer.RootOption) (*layer.Root, error) {
	names, given, err := o.cascadeVars()
	if err != nil {
		return nil, err
	}

	root, err := layer.New(layer.Options{
		Dirs:      o.dirs,
		Variables: names,
		Strategy:  o.strategy,
		Separator: o.separator,
		EnvPrefix: o.envPrefix,
	}, append([]layer.RootOption{layer.WithLogger(o.logger)}, extra...)...)
	if err != nil {
		return nil, err
	}

	if len(given) > 0 {
		if err := root.Overrides().Add("flags", config.FromStrings(given)); err != nil {
			root.Close()
			return nil, err
		}
	}
	if o.app != "" {
		if err := root.LoadApplication(o.app); err != nil {
			root.Close()
			return nil, err
		}
	}
	return root, nil
}
