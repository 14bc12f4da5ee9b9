package misttest

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/url"
	"strings"
)

// Capture files hold one response per endpoint:
//
//	# https://api.eu.mist.com/api/v1/orgs/<org>/sites
//	[ ...JSON body... ]
//
// The comment line carries the full request URL. Only its path is used on replay.

// WriteCapture appends one endpoint to a capture file.
func WriteCapture(w io.Writer, rawURL string, body []byte) error {
	var indented bytes.Buffer
	if err := json.Indent(&indented, body, "", "  "); err != nil {
		return fmt.Errorf("invalid JSON from %s: %w", rawURL, err)
	}
	if _, err := fmt.Fprintf(w, "# %s\n%s\n", rawURL, indented.Bytes()); err != nil {
		return err
	}
	return nil
}

// ReadCapture parses a capture file into bodies keyed by URL path.
func ReadCapture(r io.Reader) (map[string]json.RawMessage, error) {
	endpoints := make(map[string]json.RawMessage)
	var currentPath string
	var body []string

	flush := func() error {
		if currentPath == "" {
			return nil
		}
		text := strings.TrimSpace(strings.Join(body, "\n"))
		if text == "" {
			return nil
		}
		if !json.Valid([]byte(text)) {
			return fmt.Errorf("invalid JSON for %s", currentPath)
		}
		endpoints[currentPath] = json.RawMessage(text)
		return nil
	}

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 64*1024*1024)
	lineNum := 0
	for scanner.Scan() {
		lineNum++
		line := scanner.Text()
		if strings.HasPrefix(line, "# http") {
			if err := flush(); err != nil {
				return nil, err
			}
			u, err := url.Parse(strings.TrimSpace(strings.TrimPrefix(line, "# ")))
			if err != nil {
				return nil, fmt.Errorf("line %d: %w", lineNum, err)
			}
			currentPath = strings.TrimSuffix(u.Path, "/")
			body = body[:0]
			continue
		}
		if currentPath != "" {
			body = append(body, line)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("error reading capture at line %d: %w", lineNum, err)
	}
	if err := flush(); err != nil {
		return nil, err
	}
	return endpoints, nil
}
