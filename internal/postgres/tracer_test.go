package postgres

import (
	"context"
	"testing"
	"time"
)

func TestShortenFuncName(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		in   string
		want string
	}{
		{"full path", "github.com/linnemanlabs/augur/internal/pipeline/pgstore.(*Store).Seen", "(*Store).Seen"},
		{"already short", "(*Store).Seen", "Seen"},
		{"empty string", "", ""},
		{"no dots", "main", "main"},
		{"no slashes", "pgstore.(*Store).Seen", "(*Store).Seen"},
		{"single segment", "foo.Bar", "Bar"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := shortenFuncName(tt.in)
			if got != tt.want {
				t.Errorf("shortenFuncName(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestSetQueryObserver(t *testing.T) {
	t.Parallel()

	// Save and restore the global to avoid test pollution.
	defer SetQueryObserver(nil)

	var gotOp, gotOutcome string
	obs := QueryObserverFunc(func(_ context.Context, operation, outcome string, _ time.Duration) {
		gotOp, gotOutcome = operation, outcome
	})

	SetQueryObserver(obs)
	got := getQueryObserver()
	if got == nil {
		t.Fatal("expected non-nil observer after Set")
	}
	got.ObserveQuery(context.Background(), "SELECT", "ok", time.Millisecond)
	if gotOp != "SELECT" || gotOutcome != "ok" {
		t.Errorf("observer got (%q, %q), want (SELECT, ok)", gotOp, gotOutcome)
	}

	SetQueryObserver(nil)
	if getQueryObserver() != nil {
		t.Error("expected nil observer after Set(nil)")
	}
}

func TestWrapQueryTracer_NilInner(t *testing.T) {
	t.Parallel()

	tr := wrapQueryTracer(nil)
	lt, ok := tr.(loggingTracer)
	if !ok {
		t.Fatalf("wrapQueryTracer returned %T, want loggingTracer", tr)
	}
	if lt.inner != nil {
		t.Error("expected nil inner tracer to stay nil")
	}
}
