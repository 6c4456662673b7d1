package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/pitchpilot/outreach/internal/logger"
)

// setup builds the logger, config and engine for a command. Any failure is
// fatal: commands have nothing sensible to do without them. adjust may
// tweak the decoded config before the engine is built.
func setup(cmd *cobra.Command, adjust ...func(*Config)) (context.Context, *engine) {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	l := newLogger()

	config, err := getConfig()
	if err != nil {
		l.Fatal("getting a config", zap.Error(err))
	}
	if config == nil {
		l.Fatal("config is required")
	}
	for _, fn := range adjust {
		fn(config)
	}

	e, err := newEngine(ctx, config, l)
	if err != nil {
		l.Fatal("starting the engine", zap.Error(err))
	}

	return ctx, e
}

func newLogger() *zap.Logger {
	l, err := logger.New(viper.GetBool("json"), viper.GetBool("debug"))
	if err != nil {
		log.Fatalf("creating a logger: %s", err)
	}
	return l
}

// output prints v as indented JSON on the command's stdout. A result that
// can't be written is a failed command.
func (e *engine) output(cmd *cobra.Command, v any) {
	if err := printJSON(cmd.OutOrStdout(), v); err != nil {
		e.logger.Fatal("writing command output", zap.Error(err))
	}
}

func printJSON(w io.Writer, v any) error {
	pretty, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, string(pretty))
	return err
}

// textFlag returns the value of flag name, or the content of the file named
// by flag name+"-file" when that one is set.
func textFlag(cmd *cobra.Command, name string) (string, error) {
	if file, _ := cmd.Flags().GetString(name + "-file"); strings.TrimSpace(file) != "" {
		data, err := os.ReadFile(file)
		if err != nil {
			return "", fmt.Errorf("reading --%s-file: %w", name, err)
		}
		return string(data), nil
	}
	v, _ := cmd.Flags().GetString(name)
	return v, nil
}

// optionalString returns a pointer to the flag value only if the user set it.
func optionalString(cmd *cobra.Command, name string) *string {
	if !cmd.Flags().Changed(name) {
		return nil
	}
	v, _ := cmd.Flags().GetString(name)
	return &v
}
