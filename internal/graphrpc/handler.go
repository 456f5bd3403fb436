package graphrpc

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/francescomaiomascio/yai/internal/controlplane"
	"github.com/francescomaiomascio/yai/internal/graph"
)

var errBadRequest = errors.New("bad request")

// Handler serves graph.* requests from a local BackendProvider.
type Handler struct {
	provider graph.BackendProvider
	logger   *zap.Logger
}

var _ controlplane.Handler = (*Handler)(nil)

func NewHandler(provider graph.BackendProvider, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{provider: provider, logger: logger.Named("graphrpc")}
}

type opFunc func(h *Handler, ctx context.Context, payload json.RawMessage) (any, error)

var ops = map[string]opFunc{
	OpPutNode:      (*Handler).putNode,
	OpPutEdge:      (*Handler).putEdge,
	OpGetNode:      (*Handler).getNode,
	OpRawNeighbors: (*Handler).rawNeighbors,
	OpRawStats:     (*Handler).rawStats,
	OpRawExport:    (*Handler).rawExport,
	OpRawDump:      (*Handler).rawDump,
}

func (h *Handler) Handle(ctx context.Context, env *controlplane.Envelope) *controlplane.Response {
	op, ok := ops[env.Request.Type]
	if !ok {
		return controlplane.Fail(controlplane.KindUnknownRequest, fmt.Sprintf("unknown request type %q", env.Request.Type))
	}
	result, err := op(h, ctx, env.Request.Payload)
	if err != nil {
		kind := errorKind(err)
		if kind == graph.Kind(graph.ErrBackendUnavailable) || kind == controlplane.KindInternal {
			h.logger.Warn("graph request failed",
				zap.String("type", env.Request.Type),
				zap.String("trace_id", env.TraceID),
				zap.Error(err))
		}
		return controlplane.Fail(kind, err.Error())
	}
	resp, err := controlplane.OK(result)
	if err != nil {
		return controlplane.Fail(controlplane.KindInternal, err.Error())
	}
	return resp
}

func errorKind(err error) string {
	if errors.Is(err, errBadRequest) {
		return controlplane.KindBadRequest
	}
	if kind := graph.Kind(err); kind != "" {
		return kind
	}
	return controlplane.KindInternal
}

// decode reads payload strictly into T.
func decode[T any](payload json.RawMessage) (T, error) {
	var args T
	if len(payload) == 0 {
		return args, fmt.Errorf("%w: missing payload", errBadRequest)
	}
	dec := json.NewDecoder(bytes.NewReader(payload))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&args); err != nil {
		return args, fmt.Errorf("%w: decoding payload: %w", errBadRequest, err)
	}
	return args, nil
}

func (h *Handler) backend(ctx context.Context, scope graph.Scope) (graph.Backend, error) {
	if !scope.Valid() {
		return nil, fmt.Errorf("%w: %s", graph.ErrConflictingScope, scope)
	}
	b, err := h.provider.Backend(ctx, scope)
	if err != nil {
		if !errors.Is(err, graph.ErrBackendUnavailable) {
			err = fmt.Errorf("%w: %w", graph.ErrBackendUnavailable, err)
		}
		return nil, err
	}
	return b, nil
}

func (h *Handler) putNode(ctx context.Context, payload json.RawMessage) (any, error) {
	args, err := decode[PutNodeArgs](payload)
	if err != nil {
		return nil, err
	}
	if args.Node.ID == "" {
		return nil, fmt.Errorf("%w: node id is required", errBadRequest)
	}
	meta, err := graph.NormalizeMeta(args.Node.Meta)
	if err != nil {
		return nil, err
	}
	args.Node.Meta = meta
	b, err := h.backend(ctx, args.Scope)
	if err != nil {
		return nil, err
	}
	if err := b.PutNode(ctx, args.Node); err != nil {
		return nil, err
	}
	return Ack{ID: args.Node.ID}, nil
}

func (h *Handler) putEdge(ctx context.Context, payload json.RawMessage) (any, error) {
	args, err := decode[PutEdgeArgs](payload)
	if err != nil {
		return nil, err
	}
	e := args.Edge
	if e.Src == "" || e.Dst == "" || e.Rel == "" {
		return nil, fmt.Errorf("%w: edge needs src, dst and rel", errBadRequest)
	}
	meta, err := graph.NormalizeMeta(e.Meta)
	if err != nil {
		return nil, err
	}
	e.Meta = meta
	e.ID = graph.EdgeID(e.Rel, e.Src, e.Dst)
	b, err := h.backend(ctx, args.Scope)
	if err != nil {
		return nil, err
	}
	if err := b.PutEdge(ctx, e); err != nil {
		return nil, err
	}
	return Ack{ID: e.ID}, nil
}

func (h *Handler) getNode(ctx context.Context, payload json.RawMessage) (any, error) {
	args, err := decode[GetNodeArgs](payload)
	if err != nil {
		return nil, err
	}
	b, err := h.backend(ctx, args.Scope)
	if err != nil {
		return nil, err
	}
	n, err := b.GetNode(ctx, args.ID)
	if err != nil {
		return nil, err
	}
	return GetNodeResult{Node: n}, nil
}

func (h *Handler) rawNeighbors(ctx context.Context, payload json.RawMessage) (any, error) {
	args, err := decode[NeighborsArgs](payload)
	if err != nil {
		return nil, err
	}
	b, err := h.backend(ctx, args.Scope)
	if err != nil {
		return nil, err
	}
	return b.RawNeighbors(ctx, args.ID, args.Depth, args.Filters)
}

func (h *Handler) rawStats(ctx context.Context, payload json.RawMessage) (any, error) {
	args, err := decode[ScopeArgs](payload)
	if err != nil {
		return nil, err
	}
	b, err := h.backend(ctx, args.Scope)
	if err != nil {
		return nil, err
	}
	return b.RawStats(ctx)
}

func (h *Handler) rawExport(ctx context.Context, payload json.RawMessage) (any, error) {
	args, err := decode[ExportArgs](payload)
	if err != nil {
		return nil, err
	}
	format, err := graph.ParseExportFormat(string(args.Format))
	if err != nil {
		return nil, err
	}
	if args.Dest == "" {
		return nil, fmt.Errorf("%w: export destination is required", errBadRequest)
	}
	b, err := h.backend(ctx, args.Scope)
	if err != nil {
		return nil, err
	}
	n, err := b.RawExport(ctx, format, args.Dest)
	if err != nil {
		return nil, err
	}
	return ExportResult{Bytes: n}, nil
}

func (h *Handler) rawDump(ctx context.Context, payload json.RawMessage) (any, error) {
	args, err := decode[ScopeArgs](payload)
	if err != nil {
		return nil, err
	}
	b, err := h.backend(ctx, args.Scope)
	if err != nil {
		return nil, err
	}
	d, ok := b.(graph.Dumper)
	if !ok {
		return nil, fmt.Errorf("%w: backend cannot dump scope", graph.ErrBackendUnavailable)
	}
	return d.RawDump(ctx)
}
