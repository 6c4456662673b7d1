package logger

import (
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestStringFields(t *testing.T) {
	fields := StringFields(
		StringField{Key: "  provider  ", Value: "  gemini  "},
		StringField{Key: "ignored", Value: "   "},
		StringField{Key: "   ", Value: "empty key"},
	)

	if len(fields) != 1 {
		t.Fatalf("expected 1 field, got %d", len(fields))
	}

	if fields[0].Key != "provider" || fields[0].String != "gemini" {
		t.Fatalf("unexpected provider field: %+v", fields[0])
	}

	if empty := StringFields(); len(empty) != 0 {
		t.Fatalf("expected empty fields, got %d", len(empty))
	}
}

func TestOutreachFieldsSkipsEmpty(t *testing.T) {
	fields := OutreachFields("lead-1", "", "msg-9")
	if len(fields) != 2 {
		t.Fatalf("expected 2 fields, got %d", len(fields))
	}

	if fields[0].Key != FieldLeadID || fields[0].String != "lead-1" {
		t.Fatalf("unexpected lead field: %+v", fields[0])
	}

	if fields[1].Key != FieldMessageID || fields[1].String != "msg-9" {
		t.Fatalf("unexpected message field: %+v", fields[1])
	}
}

func TestComponent(t *testing.T) {
	core, observed := observer.New(zapcore.InfoLevel)

	Component(zap.New(core), "scheduler").Info("tick")

	entries := observed.All()
	if len(entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(entries))
	}

	if got := entries[0].ContextMap()[FieldComponent]; got != "scheduler" {
		t.Fatalf("expected component scheduler, got %v", got)
	}

	// Ensure logging with the fallback logger does not panic.
	Component(nil, "x").Info("noop")
}

func TestWithFields(t *testing.T) {
	core, observed := observer.New(zapcore.InfoLevel)

	WithFields(zap.New(core), CommonFields("gemini", "model-x")...).Info("test log")

	ctx := observed.All()[0].ContextMap()
	if ctx[FieldProvider] != "gemini" {
		t.Fatalf("expected provider field to be gemini, got %q", ctx[FieldProvider])
	}
	if ctx[FieldModel] != "model-x" {
		t.Fatalf("expected model field to be model-x, got %q", ctx[FieldModel])
	}

	if WithFields(nil) == nil {
		t.Fatalf("expected fallback logger when nil provided")
	}
}
