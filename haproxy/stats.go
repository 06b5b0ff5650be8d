package haproxy

import (
	"errors"
	"fmt"
	"strings"
)

const (
	infoCommand = "show info"

	// Values of the "type" filter of "show stat", OR'ed together.
	frontendType = 1
	backendType  = 2
	serverType   = 4
)

// ErrMalformedInfoLine is returned for a "show info" line that is not of
// the form "label: value".
var ErrMalformedInfoLine = errors.New("malformed info line")

// InfoField is one "label: value" line of the "show info" output.
type InfoField struct {
	Label string
	Value string
}

// StatRecord is one data line of the "show stat" output. Name holds the
// first column (the proxy name); Fields maps the remaining header columns
// to the raw values.
type StatRecord struct {
	Name   string
	Fields map[string]string
}

// Info runs "show info" and parses its output. It returns no fields when
// the socket returned nothing.
func (s *Socket) Info() ([]InfoField, error) {
	response, err := s.SendCommand(infoCommand)
	if err != nil {
		return nil, err
	}
	if response == "" {
		return nil, nil
	}
	return ParseInfo(response)
}

// Stats runs "show stat" for the selected proxy types and parses its
// output. It returns no records when the socket returned nothing.
func (s *Socket) Stats(frontends, backends, servers bool) ([]StatRecord, error) {
	response, err := s.SendCommand(StatCommand(frontends, backends, servers))
	if err != nil {
		return nil, err
	}
	if response == "" {
		return nil, nil
	}
	return ParseStats(response), nil
}

// TypeFilter returns the "show stat" type mask selecting the given proxy
// types.
func TypeFilter(frontends, backends, servers bool) int {
	filter := 0
	if frontends {
		filter += frontendType
	}
	if backends {
		filter += backendType
	}
	if servers {
		filter += serverType
	}
	return filter
}

// StatCommand returns the "show stat" command for all proxies and servers
// of the given types.
func StatCommand(frontends, backends, servers bool) string {
	return fmt.Sprintf("show stat -1 %d -1", TypeFilter(frontends, backends, servers))
}

// ParseInfo splits a "show info" response into its fields. Labels end at
// the first ": ", so values may contain the delimiter themselves.
func ParseInfo(response string) ([]InfoField, error) {
	lines := strings.Split(response, "\n")
	fields := make([]InfoField, 0, len(lines))
	for i, line := range lines {
		label, value, ok := strings.Cut(line, ": ")
		if !ok {
			return nil, fmt.Errorf("%w at line %d: %q", ErrMalformedInfoLine, i+1, line)
		}
		fields = append(fields, InfoField{Label: label, Value: value})
	}
	return fields, nil
}

// ParseStats splits a "show stat" CSV response into records. The first
// line is the header. Values are paired with header columns by position;
// a line with fewer or more values than the header is paired up to the
// shorter of the two.
func ParseStats(response string) []StatRecord {
	lines := strings.Split(response, "\n")
	header := strings.Split(lines[0], ",")
	// The first column is the proxy name, kept as the record name.
	names := header[1:]

	records := make([]StatRecord, 0, len(lines)-1)
	for _, line := range lines[1:] {
		values := strings.Split(line, ",")
		record := StatRecord{
			Name:   values[0],
			Fields: make(map[string]string, len(names)),
		}
		for i, value := range values[1:] {
			if i >= len(names) {
				break
			}
			record.Fields[names[i]] = value
		}
		records = append(records, record)
	}
	return records
}
