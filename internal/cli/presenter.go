package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"

	"github.com/hotload-labs/hotload/internal/hotload"
)

// promptPresenter shows update dialogs as a numbered terminal menu.
// A single goroutine owns the input for the presenter's lifetime, so a
// cancelled prompt leaves no second reader behind.
type promptPresenter struct {
	in    *bufio.Reader
	out   io.Writer
	start sync.Once
	lines chan readResult
}

type readResult struct {
	line string
	err  error
}

func newPromptPresenter(in io.Reader, out io.Writer) *promptPresenter {
	return &promptPresenter{in: bufio.NewReader(in), out: out, lines: make(chan readResult)}
}

// Present prints d and waits for a valid button number.
func (p *promptPresenter) Present(ctx context.Context, d hotload.Dialog) (int, error) {
	if len(d.Buttons) == 0 {
		return -1, errors.New("dialog has no buttons")
	}

	fmt.Fprintf(p.out, "\n%s\n%s\n", d.Title, d.Message)
	for i, b := range d.Buttons {
		fmt.Fprintf(p.out, "  [%d] %s\n", i+1, b.Text)
	}

	for {
		fmt.Fprintf(p.out, "Choose [1-%d]: ", len(d.Buttons))
		line, err := p.readLine(ctx)
		if err != nil {
			return -1, err
		}
		n, convErr := strconv.Atoi(strings.TrimSpace(line))
		if convErr == nil && n >= 1 && n <= len(d.Buttons) {
			return n - 1, nil
		}
		fmt.Fprintf(p.out, "Please enter a number between 1 and %d.\n", len(d.Buttons))
	}
}

func (p *promptPresenter) readLoop() {
	defer close(p.lines)
	for {
		line, err := p.in.ReadString('\n')
		p.lines <- readResult{line, err}
		if err != nil {
			return
		}
	}
}

func (p *promptPresenter) readLine(ctx context.Context) (string, error) {
	p.start.Do(func() { go p.readLoop() })

	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case r, ok := <-p.lines:
		if !ok {
			return "", fmt.Errorf("reading selection: %w", io.EOF)
		}
		if errors.Is(r.err, io.EOF) && r.line != "" {
			return r.line, nil
		}
		if r.err != nil {
			return "", fmt.Errorf("reading selection: %w", r.err)
		}
		return r.line, nil
	}
}
