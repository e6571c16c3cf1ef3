package link

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"sync"

	"github.com/wb-go/wbf/zlog"
)

const stderrTail = 16 << 10

// Child is a Pipe to a raster processor running as a separate OS process
type Child struct {
	*Pipe
	cmd    *exec.Cmd
	stdin  io.WriteCloser
	stderr *tailBuffer
	once   sync.Once
	err    error
}

// Spawn starts the processor binary at path and links to it over stdin/stdout.
// The child's stderr is kept so a crash can be explained.
func Spawn(ctx context.Context, path string, args []string, deliver Deliver, logger zlog.Zerolog) (*Child, error) {
	if path == "" {
		return nil, errors.New("empty processor binary path")
	}

	cmd := exec.CommandContext(ctx, path, args...)
	stderr := &tailBuffer{max: stderrTail}
	cmd.Stderr = stderr

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("failed to open processor stdin: %w", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("failed to open processor stdout: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("failed to start processor %q: %w", path, err)
	}

	logger.Info().Str("path", path).Int("pid", cmd.Process.Pid).Msg("Raster processor started")

	return &Child{
		Pipe:   NewPipe(stdout, stdin, deliver, logger),
		cmd:    cmd,
		stdin:  stdin,
		stderr: stderr,
	}, nil
}

// Close ends the child by closing its stdin and waits for it to exit
func (c *Child) Close() error {
	c.once.Do(func() {
		if err := c.stdin.Close(); err != nil {
			c.err = fmt.Errorf("failed to close processor stdin: %w", err)
		}
		<-c.Pipe.Done()
		if err := c.cmd.Wait(); err != nil {
			c.err = fmt.Errorf("processor exited with error: %w\n%s", err, c.stderr.String())
		}
	})
	return c.err
}

// Stderr returns the last captured bytes of the child's stderr
func (c *Child) Stderr() string {
	return c.stderr.String()
}

type tailBuffer struct {
	mu  sync.Mutex
	buf []byte
	max int
}

func (t *tailBuffer) Write(p []byte) (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.buf = append(t.buf, p...)
	if len(t.buf) > t.max {
		t.buf = t.buf[len(t.buf)-t.max:]
	}
	return len(p), nil
}

func (t *tailBuffer) String() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return string(t.buf)
}
