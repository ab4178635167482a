package exiftool

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os/exec"
	"strconv"
	"strings"
	"sync"
	"time"

	"skytag/internal/logging"
)

// DateLayout is the exiftool date/time format.
const DateLayout = "2006:01:02 15:04:05"

var (
	// ErrSessionClosed is returned for calls after Close or after the process died.
	ErrSessionClosed = errors.New("exiftool session closed")
	// ErrNoCreateDate is returned when a file carries no usable CreateDate.
	ErrNoCreateDate = errors.New("no CreateDate tag")
)

// CommandError reports errors exiftool printed for one command.
type CommandError struct {
	Path     string
	Messages []string
}

func (e *CommandError) Error() string {
	return fmt.Sprintf("exiftool %s: %s", e.Path, strings.Join(e.Messages, "; "))
}

// Options configures Open.
type Options struct {
	Binary string
	// CommonArgs are sent ahead of every command.
	CommonArgs []string
	Logger     *slog.Logger
}

// Session is one long-lived exiftool process.
type Session struct {
	mu         sync.Mutex
	cmd        *exec.Cmd
	stdin      io.WriteCloser
	stdout     *bufio.Reader
	stderr     *bufio.Reader
	commonArgs []string
	logger     *slog.Logger
	seq        int
	commands   int
	closed     bool
	closeErr   error
}

type reply struct {
	stdout string
	stderr string
	err    error
}

// Open starts exiftool in stay-open mode. The process is killed if ctx ends.
func Open(ctx context.Context, opts Options) (*Session, error) {
	binary := strings.TrimSpace(opts.Binary)
	if binary == "" {
		binary = "exiftool"
	}
	cmd := exec.CommandContext(ctx, binary, "-stay_open", "True", "-@", "-")
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("exiftool stdin: %w", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("exiftool stdout: %w", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return nil, fmt.Errorf("exiftool stderr: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start exiftool: %w", err)
	}

	logger := logging.NewComponentLogger(opts.Logger, "exiftool")
	logger.Debug("exiftool session opened",
		logging.String("binary", binary),
		logging.Int("pid", cmd.Process.Pid),
	)
	return &Session{
		cmd:        cmd,
		stdin:      stdin,
		stdout:     bufio.NewReader(stdout),
		stderr:     bufio.NewReader(stderr),
		commonArgs: append([]string(nil), opts.CommonArgs...),
		logger:     logger,
	}, nil
}

// WriteMetadata applies assignments to path in a single command.
func (s *Session) WriteMetadata(ctx context.Context, path string, assignments []Assignment, options ...string) error {
	if strings.TrimSpace(path) == "" {
		return errors.New("exiftool write: empty path")
	}
	if len(assignments) == 0 {
		return errors.New("exiftool write: no assignments")
	}
	args := make([]string, 0, len(options)+len(assignments)+1)
	args = append(args, options...)
	for _, a := range assignments {
		if err := a.validate(); err != nil {
			return fmt.Errorf("exiftool write: %w", err)
		}
		args = append(args, a.Arg())
	}
	args = append(args, path)

	r, err := s.execute(ctx, args)
	if err != nil {
		return fmt.Errorf("exiftool write: %w", err)
	}
	if err := s.checkReply(path, r); err != nil {
		return err
	}
	if strings.Contains(r.stdout, "weren't updated") {
		return &CommandError{Path: path, Messages: []string{strings.TrimSpace(r.stdout)}}
	}
	return nil
}

// ReadMetadata returns the requested tags for path, keyed by tag name.
func (s *Session) ReadMetadata(ctx context.Context, path string, tags ...string) (map[string]any, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("exiftool read: empty path")
	}
	args := []string{"-json"}
	for _, tag := range tags {
		args = append(args, "-"+strings.TrimPrefix(tag, "-"))
	}
	args = append(args, path)

	r, err := s.execute(ctx, args)
	if err != nil {
		return nil, fmt.Errorf("exiftool read: %w", err)
	}
	if err := s.checkReply(path, r); err != nil {
		return nil, err
	}

	var decoded []map[string]any
	if err := json.Unmarshal([]byte(r.stdout), &decoded); err != nil {
		return nil, fmt.Errorf("exiftool read: decode json: %w", err)
	}
	if len(decoded) == 0 {
		return map[string]any{}, nil
	}
	values := decoded[0]
	delete(values, "SourceFile")
	return values, nil
}

// ReadCreateDate reads the CreateDate tag of path.
func (s *Session) ReadCreateDate(ctx context.Context, path string) (time.Time, error) {
	values, err := s.ReadMetadata(ctx, path, "CreateDate")
	if err != nil {
		return time.Time{}, err
	}
	raw, ok := values["CreateDate"].(string)
	if !ok {
		return time.Time{}, fmt.Errorf("%s: %w", path, ErrNoCreateDate)
	}
	ts, err := ParseDate(raw)
	if err != nil {
		return time.Time{}, fmt.Errorf("%s: %w", path, err)
	}
	return ts, nil
}

// ParseDate parses an exiftool date, with or without a zone suffix.
func ParseDate(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" || strings.HasPrefix(raw, "0000:00:00") {
		return time.Time{}, ErrNoCreateDate
	}
	for _, layout := range []string{DateLayout + "Z07:00", DateLayout + ".999999999Z07:00", DateLayout, DateLayout + ".999999999"} {
		if ts, err := time.Parse(layout, raw); err == nil {
			return ts, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized date %q", raw)
}

// Commands returns how many commands the session has executed.
func (s *Session) Commands() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.commands
}

// Close asks exiftool to exit and waits for it. Later calls return the first result.
func (s *Session) Close() error {
	if s == nil {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closeLocked(true)
}

func (s *Session) closeLocked(graceful bool) error {
	if s.closed {
		return s.closeErr
	}
	s.closed = true
	if graceful {
		if _, err := io.WriteString(s.stdin, "-stay_open\nFalse\n"); err != nil {
			s.logger.Debug("exiftool stay_open shutdown not delivered", logging.Error(err))
		}
	}
	_ = s.stdin.Close()
	if !graceful && s.cmd.Process != nil {
		_ = s.cmd.Process.Kill()
	}
	if err := s.cmd.Wait(); err != nil && graceful {
		s.closeErr = fmt.Errorf("exiftool exit: %w", err)
	}
	s.logger.Debug("exiftool session closed", logging.Int("commands", s.commands))
	return s.closeErr
}

func (s *Session) execute(ctx context.Context, args []string) (reply, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return reply{}, ErrSessionClosed
	}
	if err := ctx.Err(); err != nil {
		return reply{}, err
	}

	s.seq++
	marker := "{ready" + strconv.Itoa(s.seq) + "}"
	var b strings.Builder
	for _, arg := range s.commonArgs {
		b.WriteString(arg)
		b.WriteByte('\n')
	}
	for _, arg := range args {
		b.WriteString(arg)
		b.WriteByte('\n')
	}
	b.WriteString("-echo4\n")
	b.WriteString(marker + "\n")
	b.WriteString("-execute" + strconv.Itoa(s.seq) + "\n")

	if _, err := io.WriteString(s.stdin, b.String()); err != nil {
		_ = s.closeLocked(false)
		return reply{}, fmt.Errorf("send command: %w", err)
	}
	s.commands++

	done := make(chan reply, 1)
	go func() {
		out, err := readUntil(s.stdout, marker)
		if err != nil {
			done <- reply{err: fmt.Errorf("read stdout: %w", err)}
			return
		}
		errOut, err := readUntil(s.stderr, marker)
		if err != nil {
			done <- reply{err: fmt.Errorf("read stderr: %w", err)}
			return
		}
		done <- reply{stdout: out, stderr: errOut}
	}()

	select {
	case r := <-done:
		if r.err != nil {
			_ = s.closeLocked(false)
			return reply{}, r.err
		}
		return r, nil
	case <-ctx.Done():
		if s.cmd.Process != nil {
			_ = s.cmd.Process.Kill()
		}
		<-done
		_ = s.closeLocked(false)
		return reply{}, ctx.Err()
	}
}

func (s *Session) checkReply(path string, r reply) error {
	var failures []string
	for _, line := range strings.Split(r.stderr, "\n") {
		line = strings.TrimSpace(line)
		switch {
		case line == "":
		case strings.HasPrefix(line, "Warning:"):
			s.logger.Warn("exiftool warning",
				logging.String("path", path),
				logging.String("message", strings.TrimSpace(strings.TrimPrefix(line, "Warning:"))),
				logging.String(logging.FieldEventType, "exiftool_warning"),
				logging.String(logging.FieldErrorHint, "inspect the file with exiftool -v"),
				logging.String(logging.FieldImpact, "tags were written; exiftool reported a minor issue"),
			)
		default:
			failures = append(failures, line)
		}
	}
	if len(failures) > 0 {
		return &CommandError{Path: path, Messages: failures}
	}
	return nil
}

func readUntil(r *bufio.Reader, marker string) (string, error) {
	var b strings.Builder
	for {
		line, err := r.ReadString('\n')
		if strings.TrimSpace(line) == marker {
			return b.String(), nil
		}
		b.WriteString(line)
		if err != nil {
			if errors.Is(err, io.EOF) {
				return b.String(), io.ErrUnexpectedEOF
			}
			return b.String(), err
		}
	}
}
