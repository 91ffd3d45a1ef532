// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package ctlapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

type fakeProvider struct{ status Status }

func (f fakeProvider) Status() Status { return f.status }

type fakeCompiler struct {
	status  *Status
	err     error
	dryRuns []bool
}

func (f *fakeCompiler) Compile(dryRun bool) (*Status, error) {
	f.dryRuns = append(f.dryRuns, dryRun)
	if f.err != nil {
		return nil, f.err
	}
	return f.status, nil
}

func TestHandleStatusReturnsProviderStatus(t *testing.T) {
	provider := fakeProvider{status: Status{ChainsManaged: 7}}
	s := New(provider, &fakeCompiler{})

	req := httptest.NewRequest(http.MethodGet, "/status", nil)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var got Status
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatal(err)
	}
	if got.ChainsManaged != 7 {
		t.Errorf("ChainsManaged = %d", got.ChainsManaged)
	}
}

func TestHandleCompilePassesDryRunThrough(t *testing.T) {
	compiler := &fakeCompiler{status: &Status{ChainsManaged: 3}}
	s := New(fakeProvider{}, compiler)

	req := httptest.NewRequest(http.MethodPost, "/compile?dry_run=1", nil)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	if len(compiler.dryRuns) != 1 || !compiler.dryRuns[0] {
		t.Errorf("dryRuns = %v, want [true]", compiler.dryRuns)
	}
}

func TestHandleCompileReportsError(t *testing.T) {
	compiler := &fakeCompiler{err: errors.New("apply failed")}
	s := New(fakeProvider{}, compiler)

	req := httptest.NewRequest(http.MethodPost, "/compile", nil)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d", rec.Code)
	}
}
