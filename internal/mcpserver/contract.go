package mcpserver

// ScheduleFormat describes the schedule document and favourites file so
// LLM consumers can interpret event fields and ids.
const ScheduleFormat = `# Schedule Format

The schedule is a single XML document published by the conference.

## Document

` + "```" + `xml
<schedule>
  <day date="2010-02-06">
    <room name="Janson">
      <event id="101">
        <start>10:00</start>
        <duration>00:45</duration>
        <title>Welcome</title>
        <track>Keynotes</track>
        <abstract>Short summary.</abstract>
        <description>Longer text.</description>
        <persons>
          <person>Alice</person>
          <person>Bob</person>
        </persons>
      </event>
    </room>
  </day>
</schedule>
` + "```" + `

## Fields

1. **id** is the event identifier used by get_event and the favourite tools.
2. **date** is the weekday name derived from the day's ISO date (Saturday, Sunday).
   Events are ordered by that name and then by start, so Monday sorts before
   Sunday.
3. **start** and **duration** are HH:MM. **end** is start plus duration on a
   24-hour clock, so an event may end after midnight (23:30 + 01:00 = 00:30).
4. **room** always comes from the enclosing ` + "`" + `<room name>` + "`" + ` element.
5. **person** lists the speakers joined with ", ".
6. Line breaks inside abstract and description are removed; blank lines
   between paragraphs are kept. The title is used as written.

## Favourites

Favourites are stored in a file named ` + "`" + `favourites` + "`" + `, next to the
schedule by default. The server configuration may point it elsewhere or at a
per-user location. The file holds one event id per line, ordered by day and
start time. Each add or remove rewrites the file immediately.
`
