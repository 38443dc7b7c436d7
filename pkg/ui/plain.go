package ui

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"

	"chatwidget/pkg/chat"
)

// RunPlain drives w from line-oriented input, for when stdin is not a
// terminal. Each non-blank line is submitted and its answer printed once fully
// revealed.
func RunPlain(ctx context.Context, w *chat.Widget, in io.Reader, out io.Writer) error {
	if intro := w.Catalog().Intro; intro != "" {
		if _, err := fmt.Fprintf(out, "%s\n\n", intro); err != nil {
			return err
		}
	}

	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, 0, 4096), 1<<20)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if !w.Submit(line) {
			continue
		}
		if err := w.WaitIdle(ctx); err != nil {
			return err
		}

		answer, ok := w.Store().Snapshot().Last()
		if !ok {
			continue
		}
		prefix := ""
		if answer.Error {
			prefix = "! "
		}
		if _, err := fmt.Fprintf(out, "%s%s\n\n", prefix, answer.Content); err != nil {
			return err
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("failed to read input: %w", err)
	}
	return nil
}
