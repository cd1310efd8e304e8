package generation

import (
	"bufio"
	"bytes"
	"errors"
	"io"
	"strings"
)

// readSSE dispatches each server-sent event to fn with its event name and
// joined data lines. Lines are read without a length cap since image events
// carry megabytes of base64 on one line.
func readSSE(r io.Reader, fn func(event string, data []byte) error) error {
	br := bufio.NewReaderSize(r, 64<<10)
	var (
		name string
		data bytes.Buffer
	)
	dispatch := func() error {
		if data.Len() == 0 {
			name = ""
			return nil
		}
		err := fn(name, append([]byte(nil), data.Bytes()...))
		name = ""
		data.Reset()
		return err
	}
	for {
		line, err := br.ReadString('\n')
		if len(line) > 0 {
			line = strings.TrimRight(line, "\r\n")
			switch {
			case line == "":
				if derr := dispatch(); derr != nil {
					return derr
				}
			case strings.HasPrefix(line, ":"):
			case strings.HasPrefix(line, "event:"):
				name = strings.TrimSpace(strings.TrimPrefix(line, "event:"))
			case strings.HasPrefix(line, "data:"):
				if data.Len() > 0 {
					data.WriteByte('\n')
				}
				data.WriteString(strings.TrimPrefix(strings.TrimPrefix(line, "data:"), " "))
			}
		}
		if errors.Is(err, io.EOF) {
			return dispatch()
		}
		if err != nil {
			return err
		}
	}
}
