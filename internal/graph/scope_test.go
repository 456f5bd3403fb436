package graph

import (
	"errors"
	"testing"
)

func TestResolveScope(t *testing.T) {
	tests := []struct {
		name      string
		ws        string
		global    bool
		defaultWS string
		want      Scope
		wantErr   error
	}{
		{"explicit workspace", "a", false, "dflt", WorkspaceScope("a"), nil},
		{"configured default", "", false, "dflt", WorkspaceScope("dflt"), nil},
		{"builtin default", "", false, "", WorkspaceScope(DefaultWorkspace), nil},
		{"global", "", true, "dflt", GlobalScope(), nil},
		{"conflict", "a", true, "", Scope{}, ErrConflictingScope},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ResolveScope(tt.ws, tt.global, tt.defaultWS)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("expected error %v, got %v", tt.wantErr, err)
			}
			if got != tt.want {
				t.Errorf("expected %+v, got %+v", tt.want, got)
			}
		})
	}
}

func TestScopeString(t *testing.T) {
	if got := WorkspaceScope("a").String(); got != "ws:a" {
		t.Errorf("expected ws:a, got %s", got)
	}
	if got := GlobalScope().String(); got != "global" {
		t.Errorf("expected global, got %s", got)
	}
}

func TestScopeValid(t *testing.T) {
	if !WorkspaceScope("a").Valid() || !GlobalScope().Valid() {
		t.Error("expected constructed scopes to be valid")
	}
	if (Scope{}).Valid() || WorkspaceScope("").Valid() || (Scope{Kind: ScopeGlobal, Workspace: "a"}).Valid() {
		t.Error("expected malformed scopes to be invalid")
	}
}

func TestOpError_Context(t *testing.T) {
	err := opError("put_node", WorkspaceScope("a"), "n1", ErrInvalidMeta)
	var oe *OpError
	if !errors.As(err, &oe) {
		t.Fatalf("expected *OpError, got %T", err)
	}
	if oe.Op != "put_node" || oe.Scope != "ws:a" || oe.ID != "n1" {
		t.Errorf("unexpected context %+v", oe)
	}
	if !errors.Is(err, ErrInvalidMeta) {
		t.Error("expected errors.Is to find ErrInvalidMeta")
	}
	if want := "graph put_node [ws:a] n1: invalid meta: not a JSON document"; err.Error() != want {
		t.Errorf("expected %q, got %q", want, err.Error())
	}
}

func TestKindRoundTrip(t *testing.T) {
	for _, sentinel := range []error{ErrConflictingScope, ErrInvalidMeta, ErrUnsupportedExportFormat, ErrBackendUnavailable} {
		kind := Kind(opError("x", GlobalScope(), "", sentinel))
		back, ok := SentinelForKind(kind)
		if !ok || back != sentinel {
			t.Errorf("kind %q did not map back to %v", kind, sentinel)
		}
	}
	if Kind(errors.New("other")) != "" {
		t.Error("unrelated errors have no kind")
	}
}

func TestParseExportFormat(t *testing.T) {
	for in, want := range map[string]ExportFormat{"dot": ExportDot, "JSONL": ExportJSONL, " jsonl ": ExportJSONL} {
		got, err := ParseExportFormat(in)
		if err != nil || got != want {
			t.Errorf("ParseExportFormat(%q) = %q, %v", in, got, err)
		}
	}
	if _, err := ParseExportFormat("graphml"); !errors.Is(err, ErrUnsupportedExportFormat) {
		t.Errorf("expected ErrUnsupportedExportFormat, got %v", err)
	}
}

func TestNormalizeMeta(t *testing.T) {
	if got, err := NormalizeMeta(nil); err != nil || string(got) != "null" {
		t.Errorf("empty meta: got %s, %v", got, err)
	}
	if got, err := NormalizeMeta([]byte(` {"a":[1,2]} `)); err != nil || string(got) != `{"a":[1,2]}` {
		t.Errorf("object meta: got %s, %v", got, err)
	}
	if _, err := NormalizeMeta([]byte(`{broken`)); !errors.Is(err, ErrInvalidMeta) {
		t.Errorf("expected ErrInvalidMeta, got %v", err)
	}
}
