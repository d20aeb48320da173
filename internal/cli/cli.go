package cli

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"
	"github.com/vk/dynmod/internal/app"
	"gopkg.in/yaml.v3"
)

// ExitError is a custom error type that includes a specific exit code.
type ExitError struct {
	Code    int
	Message string
}

// Error implements the error interface for ExitError.
func (e *ExitError) Error() string {
	return e.Message
}

func usageError(format string, args ...any) error {
	return &ExitError{Code: 2, Message: fmt.Sprintf(format, args...)}
}

// flags shared by every command.
type rootFlags struct {
	logFormat string
	logLevel  string
}

// Run parses args and executes the selected command. Command output goes
// to outW, logs to errW. opts are passed to app.NewApp.
func Run(ctx context.Context, args []string, outW, errW io.Writer, opts ...app.Option) error {
	root := NewRootCmd(outW, errW, opts...)
	root.SetArgs(args)
	return root.ExecuteContext(ctx)
}

// NewRootCmd builds the command tree.
func NewRootCmd(outW, errW io.Writer, opts ...app.Option) *cobra.Command {
	var flags rootFlags
	var healthcheckPort int

	newApp := func() (*app.App, error) {
		cfg, err := app.NewConfig(app.Config{
			LogFormat:       strings.ToLower(flags.logFormat),
			LogLevel:        strings.ToLower(flags.logLevel),
			HealthcheckPort: healthcheckPort,
		})
		if err != nil {
			return nil, &ExitError{Code: 2, Message: err.Error()}
		}
		return app.NewApp(errW, cfg, opts...), nil
	}

	root := &cobra.Command{
		Use:   "dynmod",
		Short: "Locate, build and load dynamically linked modules",
		Long: `dynmod inspects and drives the module loader from the command line.

Loader behavior follows the DYNMOD_* environment variables, exactly as it
does inside a host program.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.SetOut(outW)
	root.SetErr(errW)
	root.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return &ExitError{Code: 2, Message: err.Error()}
	})
	root.PersistentFlags().StringVar(&flags.logFormat, "log-format", "text", "Log output format. Options: 'text' or 'json'.")
	root.PersistentFlags().StringVar(&flags.logLevel, "log-level", "info", "Set the logging level. Options: 'debug', 'info', 'warn', 'error'.")

	root.AddCommand(
		newPathsCmd(newApp),
		newBuildCmd(newApp),
		newLoadCmd(newApp),
		newWatchCmd(newApp, &healthcheckPort),
	)
	return root
}

// oneModule requires exactly one module name argument.
func oneModule(_ *cobra.Command, args []string) error {
	if len(args) != 1 {
		return usageError("expected exactly one module name, got %d arguments", len(args))
	}
	return nil
}

// pathEntry is one candidate as printed by "paths --format yaml".
type pathEntry struct {
	Dir    string `yaml:"dir"`
	Path   string `yaml:"path"`
	Exists bool   `yaml:"exists"`
}

func newPathsCmd(newApp func() (*app.App, error)) *cobra.Command {
	var format string
	cmd := &cobra.Command{
		Use:   "paths <module>",
		Short: "List the locations searched for a module's binary, in priority order",
		Args:  oneModule,
		RunE: func(cmd *cobra.Command, args []string) error {
			if format != "text" && format != "yaml" {
				return usageError("invalid format %q: must be 'text' or 'yaml'", format)
			}
			a, err := newApp()
			if err != nil {
				return err
			}
			candidates, err := a.Paths(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if format == "yaml" {
				entries := make([]pathEntry, 0, len(candidates))
				for _, c := range candidates {
					entries = append(entries, pathEntry{Dir: c.Dir, Path: c.Path, Exists: c.Exists})
				}
				enc := yaml.NewEncoder(out)
				enc.SetIndent(2)
				if err := enc.Encode(entries); err != nil {
					return err
				}
				return enc.Close()
			}

			for _, c := range candidates {
				mark := "missing"
				if c.Exists {
					mark = "found"
				}
				fmt.Fprintf(out, "%-7s  %s\n", mark, c.Path)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&format, "format", "text", "Output format. Options: 'text' or 'yaml'.")
	return cmd
}

func newBuildCmd(newApp func() (*app.App, error)) *cobra.Command {
	return &cobra.Command{
		Use:   "build <module>",
		Short: "Build a module and install its binary",
		Args:  oneModule,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			path, err := a.Build(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), path)
			return nil
		},
	}
}

func newLoadCmd(newApp func() (*app.App, error)) *cobra.Command {
	return &cobra.Command{
		Use:   "load <module>",
		Short: "Load a module into this process and report its handle type",
		Args:  oneModule,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			handle, err := a.Load(args[0])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s: %T\n", args[0], handle)
			return nil
		},
	}
}

func newWatchCmd(newApp func() (*app.App, error), port *int) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "watch <module>",
		Short: "Rebuild a module whenever its sources change",
		Long: `Rebuild a module whenever its sources change, until interrupted.

Processes that already loaded the module keep the old code; the new binary
is picked up the next time a process loads it.`,
		Args: oneModule,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			return a.Watch(cmd.Context(), args[0])
		},
	}
	cmd.Flags().IntVar(port, "healthcheck-port", 0, "Port for the HTTP health check and status server. 0 is disabled.")
	return cmd
}
