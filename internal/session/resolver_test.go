package session

import (
	"context"
	"errors"
	"testing"
)

const sampleListing = `Sessions in /work/demo
  1. sess-aaa111  2026-08-29 10:02  fix login retry
  2. sess-bbb222  2026-08-29 11:40  change proposal draft
  3. sess-ccc333  2026-08-30 09:15  spec revision
`

func TestResolve_FindsDeclaredPosition(t *testing.T) {
	tests := []struct {
		id   string
		want int
	}{
		{"sess-aaa111", 1},
		{"sess-bbb222", 2},
		{"sess-ccc333", 3},
	}
	for _, tt := range tests {
		got, err := Resolve(sampleListing, tt.id)
		if err != nil {
			t.Fatalf("Resolve(%q) error: %v", tt.id, err)
		}
		if got != tt.want {
			t.Errorf("Resolve(%q) = %d, want %d", tt.id, got, tt.want)
		}
	}
}

func TestResolve_OrderElsewhereIrrelevant(t *testing.T) {
	shuffled := `Sessions in /work/demo
  1. sess-zzz999  other entry
  2. sess-bbb222  target
  3. sess-qqq777  another
`
	got, err := Resolve(shuffled, "sess-bbb222")
	if err != nil {
		t.Fatalf("Resolve error: %v", err)
	}
	if got != 2 {
		t.Errorf("Resolve = %d, want 2", got)
	}
}

func TestResolve_NotFound(t *testing.T) {
	_, err := Resolve(sampleListing, "sess-absent")
	var nf *NotFoundError
	if !errors.As(err, &nf) {
		t.Fatalf("error = %v, want NotFoundError", err)
	}
	if nf.Entries != 3 {
		t.Errorf("Entries = %d, want 3", nf.Entries)
	}
}

func TestResolve_UnparsableOutput(t *testing.T) {
	cases := map[string]string{
		"empty":          "",
		"no header":      "  1. sess-aaa111  entry without header\n",
		"header no rows": "Sessions in /work/demo\nno entries here\n",
		"garbage":        "command not found\n",
	}
	for name, listing := range cases {
		if _, err := Resolve(listing, "sess-aaa111"); !errors.Is(err, ErrUnparsableOutput) {
			t.Errorf("%s: error = %v, want ErrUnparsableOutput", name, err)
		}
	}
}

func TestResolve_EmptySessionID(t *testing.T) {
	if _, err := Resolve(sampleListing, "  "); err == nil {
		t.Error("expected error for empty session id")
	}
}

type fakeLister struct {
	listing string
	err     error
}

func (f *fakeLister) List(ctx context.Context) (string, error) { return f.listing, f.err }

func TestResolver_PropagatesCommandFailure(t *testing.T) {
	cmdErr := &CommandError{Command: "claude", ExitCode: 127, Err: errors.New("not found")}
	r := &Resolver{Lister: &fakeLister{err: cmdErr}}

	_, err := r.Resolve(context.Background(), "sess-aaa111")
	var got *CommandError
	if !errors.As(err, &got) {
		t.Fatalf("error = %v, want CommandError", err)
	}
	if got.ExitCode != 127 {
		t.Errorf("ExitCode = %d, want 127", got.ExitCode)
	}
}

func TestResolver_ResolvesThroughLister(t *testing.T) {
	r := &Resolver{Lister: &fakeLister{listing: sampleListing}}
	got, err := r.Resolve(context.Background(), "sess-ccc333")
	if err != nil {
		t.Fatalf("Resolve error: %v", err)
	}
	if got != 3 {
		t.Errorf("Resolve = %d, want 3", got)
	}
}
