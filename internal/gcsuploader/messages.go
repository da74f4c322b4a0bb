package gcsuploader

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"
)

// maxLineBytes bounds a single message line.
const maxLineBytes = 64 << 10

// OpenSource opens a batch file. gs:// sources go through opener; anything
// else is treated as a local path. opener may be nil when only local files
// are expected.
func OpenSource(ctx context.Context, src string, opener ObjectOpener) (io.ReadCloser, error) {
	if IsGCSURI(src) {
		if opener == nil {
			return nil, fmt.Errorf("OpenSource: no storage client configured for %s", src)
		}
		return opener.OpenObject(ctx, src)
	}

	f, err := os.Open(src)
	if err != nil {
		return nil, fmt.Errorf("OpenSource: open file %q: %w", src, err)
	}
	return f, nil
}

// ReadMessages returns one message per non-blank line, trimmed.
func ReadMessages(r io.Reader) ([]string, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 4096), maxLineBytes)

	var messages []string
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		messages = append(messages, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("ReadMessages: %w", err)
	}
	return messages, nil
}

// LoadMessages opens src and reads its messages.
func LoadMessages(ctx context.Context, src string, opener ObjectOpener) ([]string, error) {
	rc, err := OpenSource(ctx, src, opener)
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	return ReadMessages(rc)
}
