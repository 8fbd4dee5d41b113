// Package mcptools exposes the skill tree store as MCP tools so agents can
// inspect and complete achievements.
package mcptools

import (
	"bytes"
	"context"
	"fmt"

	"github.com/agentic-research/skilltree/internal/completion"
	"github.com/agentic-research/skilltree/internal/render"
	"github.com/agentic-research/skilltree/internal/source"
	"github.com/agentic-research/skilltree/internal/state"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"go.uber.org/zap"
)

// Options configures the tool set.
type Options struct {
	Store         *state.Store
	Fetcher       source.Fetcher
	DefaultSource string
	// Sources limits the locations load_tree accepts besides DefaultSource.
	Sources source.AllowList
	Logger  *zap.Logger
}

// Tools implements the MCP tool handlers.
type Tools struct {
	store         *state.Store
	fetcher       source.Fetcher
	defaultSource string
	sources       source.AllowList
	logger        *zap.Logger
}

// New returns the tool set for opts.Store.
func New(opts Options) *Tools {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Tools{
		store:         opts.Store,
		fetcher:       opts.Fetcher,
		defaultSource: opts.DefaultSource,
		sources:       append(source.AllowList{opts.DefaultSource}, opts.Sources...),
		logger:        logger,
	}
}

// Server builds an MCP server with every tool registered.
func (t *Tools) Server(version string) *server.MCPServer {
	s := server.NewMCPServer("skilltree", version, server.WithToolCapabilities(false))

	s.AddTool(mcp.NewTool("get_tree",
		mcp.WithDescription("Show the skill tree as an outline ([x] completed, [ ] available, [-] locked) or as JSON."),
		mcp.WithString("format", mcp.Description("outline (default) or json")),
	), t.getTree)

	s.AddTool(mcp.NewTool("load_tree",
		mcp.WithDescription("Fetch a skill tree document and replace the current tree. Reloading a source resets its progress; with a progress database, saved progress is restored only on the first load of a source."),
		mcp.WithString("source", mcp.Description("URL or file path; defaults to the current or configured source")),
	), t.loadTree)

	s.AddTool(mcp.NewTool("toggle_achievement",
		mcp.WithDescription("Toggle one achievement. Only allowed when its parent is completed; un-completing also clears every descendant."),
		mcp.WithString("id", mcp.Required(), mcp.Description("Achievement id, e.g. root-0")),
	), t.toggle)

	s.AddTool(mcp.NewTool("complete_with_parents",
		mcp.WithDescription("Complete an achievement together with every ancestor up to the root."),
		mcp.WithString("id", mcp.Required(), mcp.Description("Achievement id")),
	), t.completeWithParents)

	s.AddTool(mcp.NewTool("reset_tree",
		mcp.WithDescription("Mark every achievement as not completed."),
	), t.reset)

	return s
}

func (t *Tools) getTree(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	format := req.GetString("format", "outline")
	st := t.store.Snapshot()
	if format == "outline" {
		return t.outline(st)
	}
	var buf bytes.Buffer
	if err := render.Encode(&buf, st, format); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(buf.String()), nil
}

func (t *Tools) loadTree(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	location := req.GetString("source", "")
	if location == "" {
		location = t.store.Snapshot().Source
	}
	if location == "" {
		location = t.defaultSource
	}
	if location == "" {
		return mcp.NewToolResultError("no tree source given or configured"), nil
	}
	if !t.sources.Allows(location) {
		t.logger.Warn("refused tree source", zap.String("source", location))
		return mcp.NewToolResultError(fmt.Sprintf("%v: %s", source.ErrForbidden, location)), nil
	}
	if t.fetcher == nil {
		return mcp.NewToolResultError("loading is disabled"), nil
	}
	if err := t.store.Load(ctx, t.fetcher, location); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("load %s: %v", location, err)), nil
	}
	return t.outline(t.store.Snapshot())
}

func (t *Tools) toggle(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return t.result(id, t.store.Toggle(id))
}

func (t *Tools) completeWithParents(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return t.result(id, t.store.CompleteWithParents(id))
}

func (t *Tools) reset(context.Context, mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	t.store.Reset()
	return t.outline(t.store.Snapshot())
}

func (t *Tools) result(id string, outcome completion.Outcome) (*mcp.CallToolResult, error) {
	switch outcome {
	case completion.NotFound:
		return mcp.NewToolResultError(fmt.Sprintf("no achievement with id %q", id)), nil
	case completion.Locked:
		st := t.store.Snapshot()
		parent := ""
		if n, ok := st.Nodes[id]; ok {
			parent = n.Parent
		}
		return mcp.NewToolResultError(fmt.Sprintf("achievement %q is locked; complete %q first", id, parent)), nil
	}
	return t.outline(t.store.Snapshot())
}

func (t *Tools) outline(st state.State) (*mcp.CallToolResult, error) {
	var buf bytes.Buffer
	if st.Error != "" {
		fmt.Fprintf(&buf, "last load failed: %s\n\n", st.Error)
	}
	if err := render.Outline(&buf, st.Nodes, st.RootID); err != nil {
		t.logger.Error("render outline", zap.Error(err))
		return nil, err
	}
	return mcp.NewToolResultText(buf.String()), nil
}
