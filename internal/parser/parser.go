// Package parser turns a schedule XML document into a models.Snapshot.
//
// The expected shape is
//
//	<schedule>
//	  <day date="2010-02-06">
//	    <room name="Janson">
//	      <event id="1234">
//	        <title/> <start/> <duration/> <track/>
//	        <abstract/> <description/>
//	        <persons><person/>...</persons>
//	      </event>
//	    </room>
//	  </day>
//	</schedule>
//
// Only direct children are inspected at every level, so elements nested
// deeper (or foreign elements carrying the same tag names) never leak into
// an event.
package parser

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/antchfx/xmlquery"

	"github.com/starford/sojourner/internal/models"
)

// ErrMalformedSchedule is matched by every error returned for a document
// that cannot be turned into a schedule.
var ErrMalformedSchedule = errors.New("malformed schedule")

// MalformedError describes why a document was rejected. Either Tag is set
// (the root element was not <schedule>) or Err holds the underlying cause.
type MalformedError struct {
	Tag string
	Err error
}

func (e *MalformedError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("malformed schedule: root element was <%s/>, not <schedule/>", e.Tag)
	}
	return "malformed schedule: " + e.Err.Error()
}

func (e *MalformedError) Unwrap() error { return e.Err }

// Is reports ErrMalformedSchedule so callers need not know the concrete type.
func (e *MalformedError) Is(target error) bool { return target == ErrMalformedSchedule }

var weekdays = [...]string{"Monday", "Tuesday", "Wednesday", "Thursday", "Friday", "Saturday", "Sunday"}

// ParseFile opens and parses the schedule at path. A missing or unreadable
// file is returned as-is (not as a MalformedError).
func ParseFile(path string) (*models.Snapshot, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("parser: open %s: %w", path, err)
	}
	defer f.Close()
	return Parse(f)
}

// Parse reads a schedule document and builds the event sequence plus the
// id, room and track indices.
func Parse(r io.Reader) (*models.Snapshot, error) {
	doc, err := xmlquery.Parse(r)
	if err != nil {
		return nil, &MalformedError{Err: err}
	}

	root := firstElement(doc)
	if root == nil {
		return nil, &MalformedError{Err: errors.New("document has no root element")}
	}
	if root.Data != "schedule" {
		return nil, &MalformedError{Tag: root.Data}
	}

	var events []*models.Event
	for _, day := range childElements(root, "day") {
		iso := day.SelectAttr("date")
		date, err := time.Parse(time.DateOnly, iso)
		if err != nil {
			return nil, &MalformedError{Err: fmt.Errorf("day date %q: %w", iso, err)}
		}
		dayName := weekdays[(int(date.Weekday())+6)%7]

		for _, roomNode := range childElements(day, "room") {
			room := roomNode.SelectAttr("name")
			for _, node := range childElements(roomNode, "event") {
				e, err := parseEvent(node, dayName, iso, room)
				if err != nil {
					return nil, &MalformedError{Err: err}
				}
				events = append(events, e)
			}
		}
	}

	return models.NewSnapshot(events), nil
}

// parseEvent reads the recognised direct children of an <event> node. The
// room always comes from the enclosing <room> element.
func parseEvent(node *xmlquery.Node, dayName, iso, room string) (*models.Event, error) {
	e := &models.Event{
		ID:   node.SelectAttr("id"),
		Date: dayName,
		Day:  iso,
		Room: room,
	}

	for child := node.FirstChild; child != nil; child = child.NextSibling {
		if child.Type != xmlquery.ElementNode {
			continue
		}
		switch child.Data {
		case "title":
			e.Title = text(child)
		case "start":
			e.Start = text(child)
		case "duration":
			e.Duration = text(child)
		case "track":
			e.Track = text(child)
		case "abstract":
			e.Abstract = stripNewlines(text(child))
		case "description":
			e.Description = stripNewlines(text(child))
		case "persons":
			e.Person = joinChildren(child, "person", ", ")
		}
	}

	end, err := End(e.Start, e.Duration)
	if err != nil {
		return nil, fmt.Errorf("event %q: %w", e.ID, err)
	}
	e.End = end
	return e, nil
}

func firstElement(doc *xmlquery.Node) *xmlquery.Node {
	for n := doc.FirstChild; n != nil; n = n.NextSibling {
		if n.Type == xmlquery.ElementNode {
			return n
		}
	}
	return nil
}

// childElements returns the direct element children of parent named name.
func childElements(parent *xmlquery.Node, name string) []*xmlquery.Node {
	var out []*xmlquery.Node
	for n := parent.FirstChild; n != nil; n = n.NextSibling {
		if n.Type == xmlquery.ElementNode && n.Data == name {
			out = append(out, n)
		}
	}
	return out
}

// text concatenates the node's own text and CDATA children. Text inside
// nested elements is not included.
func text(node *xmlquery.Node) string {
	var b strings.Builder
	for n := node.FirstChild; n != nil; n = n.NextSibling {
		if n.Type == xmlquery.TextNode || n.Type == xmlquery.CharDataNode {
			b.WriteString(n.Data)
		}
	}
	return b.String()
}

func joinChildren(parent *xmlquery.Node, name, sep string) string {
	children := childElements(parent, name)
	texts := make([]string, len(children))
	for i, c := range children {
		texts[i] = text(c)
	}
	return strings.Join(texts, sep)
}

// stripNewlines turns hard-wrapped prose into paragraphs: a blank line
// ("\n\n", or "\n \n") separates paragraphs and any other newline becomes a
// space. This is not a Markdown parser.
func stripNewlines(s string) string {
	s = strings.ReplaceAll(s, " \n", "\n")
	paras := strings.Split(s, "\n\n")
	for i, p := range paras {
		paras[i] = strings.ReplaceAll(p, "\n", " ")
	}
	return strings.Join(paras, "\n\n")
}
