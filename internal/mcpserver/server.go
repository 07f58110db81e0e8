// Package mcpserver provides an MCP (Model Context Protocol) server
// that exposes schedule tools for LLM integration via stdio transport.
package mcpserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/starford/sojourner/internal/apperr"
	"github.com/starford/sojourner/internal/index"
	"github.com/starford/sojourner/internal/models"
	"github.com/starford/sojourner/internal/schedule"
)

const formatURI = "sojourner://schedule-format"

// Server wraps the MCP server with schedule tools.
type Server struct {
	mcp    *server.MCPServer
	sched  *schedule.Schedule
	search index.Searcher
}

// New creates a new MCP server with all schedule tools registered.
// search may be nil; search_events then reports that search is unavailable.
func New(sched *schedule.Schedule, search index.Searcher) *Server {
	s := &Server{sched: sched, search: search}

	s.mcp = server.NewMCPServer(
		"Sojourner",
		"1.0.0",
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
	)

	s.mcp.AddTool(mcp.NewTool("list_events",
		mcp.WithDescription("List conference events ordered by day and start time. "+
			"All filters are optional and combine with AND."),
		mcp.WithString("room", mcp.Description("Room name, e.g. Janson")),
		mcp.WithString("track", mcp.Description("Track name")),
		mcp.WithString("day", mcp.Description("Weekday name (Saturday) or ISO date (2010-02-06)")),
	), s.listEvents)

	s.mcp.AddTool(mcp.NewTool("get_event",
		mcp.WithDescription("Read the full details of one event: speakers, time, room, track, abstract and description."),
		mcp.WithString("id", mcp.Required(), mcp.Description("Event id as shown by list_events")),
	), s.getEvent)

	s.mcp.AddTool(mcp.NewTool("search_events",
		mcp.WithDescription("Full-text search through event titles, speakers, abstracts and descriptions."),
		mcp.WithString("query", mcp.Required(), mcp.Description("Search query string")),
		mcp.WithNumber("limit", mcp.Description("Maximum number of results (default 20)")),
	), s.searchEvents)

	s.mcp.AddTool(mcp.NewTool("list_favourites",
		mcp.WithDescription("List the user's favourite events ordered by day and start time."),
	), s.listFavourites)

	s.mcp.AddTool(mcp.NewTool("add_favourite",
		mcp.WithDescription("Mark an event as favourite. The favourites file is updated immediately."),
		mcp.WithString("id", mcp.Required(), mcp.Description("Event id")),
	), s.addFavourite)

	s.mcp.AddTool(mcp.NewTool("remove_favourite",
		mcp.WithDescription("Remove an event from the favourites."),
		mcp.WithString("id", mcp.Required(), mcp.Description("Event id")),
	), s.removeFavourite)

	s.mcp.AddTool(mcp.NewTool("get_schedule_format",
		mcp.WithDescription("Describes the schedule document and favourites file formats. "+
			"Also available as the "+formatURI+" resource."),
	), s.getScheduleFormat)

	s.mcp.AddResource(
		mcp.NewResource(formatURI, "Schedule Format",
			mcp.WithResourceDescription("Schedule XML document and favourites file formats."),
			mcp.WithMIMEType("text/markdown"),
		),
		s.readScheduleFormatResource,
	)

	return s
}

// ServeStdio starts the MCP server on stdin/stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcp)
}

// MCPServer returns the underlying server for testing.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcp
}

// eventLine renders one event as a single listing line.
func eventLine(e *models.Event, favourite bool) string {
	star := " "
	if favourite {
		star = "*"
	}
	return fmt.Sprintf("%s [%s] %s %s-%s %s: %s (%s)", star, e.ID, e.Date, e.Start, e.End, e.Room, e.Title, e.Track)
}

func (s *Server) lines(events []*models.Event, empty string) *mcp.CallToolResult {
	if len(events) == 0 {
		return mcp.NewToolResultText(empty)
	}
	out := make([]string, len(events))
	for i, e := range events {
		out[i] = eventLine(e, s.sched.IsFavourite(e.ID))
	}
	return mcp.NewToolResultText(strings.Join(out, "\n"))
}

func (s *Server) listEvents(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	room := req.GetString("room", "")
	track := req.GetString("track", "")
	day := req.GetString("day", "")
	return s.lines(s.sched.Filter(room, track, day), "no events found"), nil
}

func (s *Server) getEvent(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	e, ok := s.sched.Event(id)
	if !ok {
		return mcp.NewToolResultError(fmt.Sprintf("not found: %s", id)), nil
	}
	return mcp.NewToolResultText(e.Details()), nil
}

func (s *Server) searchEvents(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query, err := req.RequireString("query")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if s.search == nil {
		return mcp.NewToolResultError(apperr.ErrSearchUnavailable.Error()), nil
	}
	results, err := s.search.Search(query, req.GetInt("limit", 20))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if len(results) == 0 {
		return mcp.NewToolResultText("no events found"), nil
	}
	out, _ := json.MarshalIndent(results, "", "  ")
	return mcp.NewToolResultText(string(out)), nil
}

func (s *Server) listFavourites(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return s.lines(s.sched.Favourites(), "no favourites"), nil
}

func (s *Server) addFavourite(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	e, err := s.sched.AddFavouriteID(id)
	if err != nil {
		return mutationError(id, err), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("favourite added: %s", e.Title)), nil
}

func (s *Server) removeFavourite(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	e, err := s.sched.RemoveFavouriteID(id)
	if err != nil {
		return mutationError(id, err), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("favourite removed: %s", e.Title)), nil
}

func mutationError(id string, err error) *mcp.CallToolResult {
	if errors.Is(err, apperr.ErrNotFound) {
		return mcp.NewToolResultError(fmt.Sprintf("not found: %s", id))
	}
	return mcp.NewToolResultError(err.Error())
}

func (s *Server) getScheduleFormat(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultText(ScheduleFormat), nil
}

func (s *Server) readScheduleFormatResource(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      formatURI,
			MIMEType: "text/markdown",
			Text:     ScheduleFormat,
		},
	}, nil
}
