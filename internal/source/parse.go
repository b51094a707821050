package source

import (
	"bufio"
	"fmt"
	"strings"
)

// Unit file directives. A file is split into an up section and an
// optional down section; within a section, statements end at a semicolon
// at end of line. Bodies that legitimately contain semicolons mid-line
// (triggers, procedures) are wrapped in -- +begin / -- +end fences and
// passed through as a single statement.
const (
	directiveUp    = "-- +up"
	directiveDown  = "-- +down"
	directiveBegin = "-- +begin"
	directiveEnd   = "-- +end"
)

// parseUnit splits a unit file's contents into up and down statement
// lists. The up section is mandatory and must contain at least one
// statement; the down section may be absent or empty.
func parseUnit(content string) (up, down []string, err error) {
	var (
		section  *[]string
		buf      strings.Builder
		fenced   bool
		sawUp    bool
		lineNo   int
		flush = func() error {
			stmt := strings.TrimSpace(buf.String())
			buf.Reset()
			if stmt == "" {
				return nil
			}
			if section == nil {
				return fmt.Errorf("line %d: statement outside -- +up / -- +down section", lineNo)
			}
			*section = append(*section, strings.TrimSuffix(stmt, ";"))
			return nil
		}
	)

	scanner := bufio.NewScanner(strings.NewReader(content))
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		lineNo++
		line := scanner.Text()
		switch strings.ToLower(strings.TrimSpace(line)) {
		case directiveUp:
			if err := flush(); err != nil {
				return nil, nil, err
			}
			section, sawUp = &up, true
			continue
		case directiveDown:
			if err := flush(); err != nil {
				return nil, nil, err
			}
			section = &down
			continue
		case directiveBegin:
			if fenced {
				return nil, nil, fmt.Errorf("line %d: nested -- +begin", lineNo)
			}
			fenced = true
			continue
		case directiveEnd:
			if !fenced {
				return nil, nil, fmt.Errorf("line %d: -- +end without -- +begin", lineNo)
			}
			fenced = false
			if err := flush(); err != nil {
				return nil, nil, err
			}
			continue
		}

		// Plain comment lines between statements are dropped; inside a
		// statement they are kept so line numbers in engine errors line up.
		if buf.Len() == 0 && strings.HasPrefix(strings.TrimSpace(line), "--") {
			continue
		}
		if strings.TrimSpace(line) == "" && buf.Len() == 0 {
			continue
		}

		buf.WriteString(line)
		buf.WriteString("\n")

		if !fenced && strings.HasSuffix(strings.TrimRight(line, " \t"), ";") {
			if err := flush(); err != nil {
				return nil, nil, err
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, nil, err
	}
	if fenced {
		return nil, nil, fmt.Errorf("unterminated -- +begin fence")
	}
	if err := flush(); err != nil {
		return nil, nil, err
	}
	if !sawUp {
		return nil, nil, fmt.Errorf("missing -- +up section")
	}
	if len(up) == 0 {
		return nil, nil, fmt.Errorf("empty -- +up section")
	}
	return up, down, nil
}
