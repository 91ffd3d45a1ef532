// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package errors

import (
	"errors"
	"testing"
)

func TestError(t *testing.T) {
	err := New(KindParse, "invalid input")
	if err.Error() != "invalid input" {
		t.Errorf("expected 'invalid input', got '%s'", err.Error())
	}

	wrapped := Wrap(err, KindInternal, "failed to validate")
	if wrapped.Error() != "failed to validate: invalid input" {
		t.Errorf("expected 'failed to validate: invalid input', got '%s'", wrapped.Error())
	}
}

func TestGetKind(t *testing.T) {
	err := New(KindParse, "invalid input")
	if GetKind(err) != KindParse {
		t.Errorf("expected KindParse, got %v", GetKind(err))
	}

	wrapped := Wrap(err, KindInternal, "failed")
	if GetKind(wrapped) != KindInternal {
		t.Errorf("expected KindInternal, got %v", GetKind(wrapped))
	}

	if GetKind(errors.New("std error")) != KindUnknown {
		t.Errorf("expected KindUnknown, got %v", GetKind(errors.New("std error")))
	}
}

func TestHasKind(t *testing.T) {
	err := New(KindLockTimeout, "lock busy")
	if !HasKind(err, KindLockTimeout) {
		t.Errorf("expected HasKind(err, KindLockTimeout) to be true")
	}
	if HasKind(err, KindApply) {
		t.Errorf("expected HasKind(err, KindApply) to be false")
	}
	if HasKind(errors.New("std error"), KindLockTimeout) {
		t.Errorf("expected HasKind on a non-*Error to be false")
	}
}

func TestAttributes(t *testing.T) {
	err := New(KindParse, "invalid input")
	err = Attr(err, "field", "port")
	err = Attr(err, "value", 80)

	attrs := GetAttributes(err)
	if attrs["field"] != "port" {
		t.Errorf("expected port, got %v", attrs["field"])
	}
	if attrs["value"] != 80 {
		t.Errorf("expected 80, got %v", attrs["value"])
	}

	wrapped := Wrap(err, KindInternal, "failed")
	wrapped = Attr(wrapped, "operation", "start")

	allAttrs := GetAttributes(wrapped)
	if allAttrs["field"] != "port" || allAttrs["operation"] != "start" {
		t.Errorf("missing attributes: %v", allAttrs)
	}
}

func TestAtLine(t *testing.T) {
	err := New(KindParse, "unknown action")
	err = AtLine(err, "100.fw", 12)

	attrs := GetAttributes(err)
	if attrs["file"] != "100.fw" {
		t.Errorf("expected 100.fw, got %v", attrs["file"])
	}
	if attrs["line"] != 12 {
		t.Errorf("expected 12, got %v", attrs["line"])
	}
}
