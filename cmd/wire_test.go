package cmd

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest"
)

func TestOpenStoreDefaultsToPostgres(t *testing.T) {
	e := &engine{config: &Config{Store: &StoreConfig{}}, logger: zaptest.NewLogger(t)}

	err := e.openStore(context.Background())
	if err == nil {
		t.Fatalf("expected missing database url to fail")
	}
	if !strings.Contains(err.Error(), "DATABASE_URL") {
		t.Fatalf("error should point at DATABASE_URL, got %v", err)
	}
	if e.store != nil {
		t.Fatalf("no store should be opened")
	}

	e = &engine{config: &Config{Store: &StoreConfig{Driver: "memory"}}, logger: zaptest.NewLogger(t)}
	if err := e.openStore(context.Background()); err != nil {
		t.Fatalf("memory store: %v", err)
	}
	if e.store == nil {
		t.Fatalf("memory store should be set")
	}
}

type brokenWriter struct{}

func (brokenWriter) Write([]byte) (int, error) {
	return 0, errors.New("broken pipe")
}

func TestOutputFailsWhenStdoutIsBroken(t *testing.T) {
	l := zaptest.NewLogger(t, zaptest.WrapOptions(zap.WithFatalHook(zapcore.WriteThenPanic)))
	e := &engine{logger: l}

	cmd := &cobra.Command{}
	cmd.SetOut(brokenWriter{})

	defer func() {
		if recover() == nil {
			t.Fatalf("expected a write failure to be fatal")
		}
	}()
	e.output(cmd, map[string]string{"id": "x"})
}

func TestFollowUpScheduleFlags(t *testing.T) {
	required := func(name string) bool {
		f := followupScheduleCmd.Flags().Lookup(name)
		if f == nil {
			t.Fatalf("flag %s is not defined", name)
		}
		return len(f.Annotations[cobra.BashCompOneRequiredFlag]) > 0
	}

	if !required("lead-id") || !required("campaign-id") {
		t.Fatalf("lead and campaign must be required")
	}
	if required("step-id") {
		t.Fatalf("step-id is optional, the campaign tone is used without it")
	}
}
