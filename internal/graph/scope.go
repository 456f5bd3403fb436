package graph

// DefaultWorkspace is used when neither a workspace nor a configured default is given.
const DefaultWorkspace = "default"

type ScopeKind string

const (
	ScopeWorkspace ScopeKind = "workspace"
	ScopeGlobal    ScopeKind = "global"
)

// Scope routes every operation to one isolated graph instance.
type Scope struct {
	Kind      ScopeKind `json:"kind"`
	Workspace string    `json:"ws,omitempty"`
}

func WorkspaceScope(ws string) Scope { return Scope{Kind: ScopeWorkspace, Workspace: ws} }

func GlobalScope() Scope { return Scope{Kind: ScopeGlobal} }

func (s Scope) IsGlobal() bool { return s.Kind == ScopeGlobal }

// String returns the label used in stats, exports and errors.
func (s Scope) String() string {
	if s.IsGlobal() {
		return "global"
	}
	return "ws:" + s.Workspace
}

// Valid reports whether s names exactly one graph instance.
func (s Scope) Valid() bool {
	switch s.Kind {
	case ScopeGlobal:
		return s.Workspace == ""
	case ScopeWorkspace:
		return s.Workspace != ""
	}
	return false
}

// ResolveScope maps caller options to a Scope. Asking for global together with a
// workspace id is rejected. Without either, defaultWS (or DefaultWorkspace) is used.
func ResolveScope(ws string, global bool, defaultWS string) (Scope, error) {
	if global {
		if ws != "" {
			return Scope{}, &OpError{Op: "resolve_scope", ID: ws, Err: ErrConflictingScope}
		}
		return GlobalScope(), nil
	}
	if ws == "" {
		ws = defaultWS
	}
	if ws == "" {
		ws = DefaultWorkspace
	}
	return WorkspaceScope(ws), nil
}
