// Package lowlevel drives the external installer process. The session
// writes the install configuration as its first line and then follows
// the installer's tagged JSON message stream until a finished message
// arrives. The installer itself is an opaque collaborator; only the line
// protocol is known here.
package lowlevel

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"

	"github.com/sirupsen/logrus"

	"autoinst/internal/config"
	"autoinst/internal/setup"
)

// Message types of the line protocol.
const (
	TypeMessage  = "message"
	TypeError    = "error"
	TypePrompt   = "prompt"
	TypeProgress = "progress"
	TypeFinished = "finished"
)

// Message is one record of the line protocol. Which of the other fields
// are meaningful depends on Type.
type Message struct {
	Type    string  `json:"type"`
	Message string  `json:"message,omitempty"`
	Query   string  `json:"query,omitempty"`
	State   string  `json:"state,omitempty"`
	Ratio   float64 `json:"ratio,omitempty"`
	Text    string  `json:"text,omitempty"`
}

// ParseMessage decodes one protocol line.
func ParseMessage(line []byte) (*Message, error) {
	var msg Message
	if err := json.Unmarshal(line, &msg); err != nil {
		return nil, fmt.Errorf("invalid low-level message: %w", err)
	}
	switch msg.Type {
	case TypeMessage, TypeError, TypePrompt, TypeProgress, TypeFinished:
		return &msg, nil
	case "":
		return nil, errors.New("invalid low-level message: missing 'type' tag")
	}
	return nil, fmt.Errorf("invalid low-level message: unknown type '%s'", msg.Type)
}

// Callbacks receive the stream events as they arrive. Nil callbacks are
// skipped. Prompt returns the reply to a query; when nil, every query is
// answered with "ok", which is what an unattended run wants.
type Callbacks struct {
	OnMessage  func(text string)
	OnError    func(text string)
	OnProgress func(ratio float64, text string)
	Prompt     func(query string) string
}

func (c Callbacks) message(text string) {
	if c.OnMessage != nil {
		c.OnMessage(text)
	}
}

func (c Callbacks) error(text string) {
	if c.OnError != nil {
		c.OnError(text)
	}
}

func (c Callbacks) progress(ratio float64, text string) {
	if c.OnProgress != nil {
		c.OnProgress(ratio, text)
	}
}

func (c Callbacks) prompt(query string) string {
	if c.Prompt != nil {
		return c.Prompt(query)
	}
	return "ok"
}

// Session is a connected low-level installer.
type Session struct {
	stdin  io.Writer
	stdout io.Reader
	wait   func() error
}

// Start spawns the low-level installer with its session subcommand and
// attaches to its pipes. Stderr passes through untouched. It is a
// variable so tests can substitute an in-memory session.
var Start = func(cfg *config.Config) (*Session, error) {
	bin := cfg.LowLevelInstaller()
	cmd := exec.Command(bin, "start-session")
	cmd.Stderr = os.Stderr
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("opening stdin pipe: %w", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("opening stdout pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("starting %s: %w", bin, err)
	}
	logrus.Debugf("started %s (pid %d)", bin, cmd.Process.Pid)
	return &Session{stdin: stdin, stdout: stdout, wait: cmd.Wait}, nil
}

// NewSession attaches to an already connected message stream.
func NewSession(in io.Writer, out io.Reader) *Session {
	return &Session{stdin: in, stdout: out}
}

// Run sends the install configuration and follows the message stream to
// its end. It returns nil only when the installer reported a successful
// finish; an error finish, a protocol violation, or the stream ending
// early all fail the run.
func (s *Session) Run(install *setup.InstallConfig, cb Callbacks) error {
	payload, err := json.Marshal(install)
	if err != nil {
		return fmt.Errorf("encoding install configuration: %w", err)
	}
	if _, err := s.stdin.Write(append(payload, '\n')); err != nil {
		return fmt.Errorf("sending install configuration: %w", err)
	}

	scanner := bufio.NewScanner(s.stdout)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		msg, err := ParseMessage(line)
		if err != nil {
			// The installer prints plain diagnostics between protocol
			// lines; only valid JSON of the wrong shape is fatal.
			if json.Valid(line) {
				return err
			}
			logrus.Debugf("low-level installer: %s", line)
			continue
		}
		switch msg.Type {
		case TypeMessage:
			cb.message(msg.Message)
		case TypeError:
			cb.error(msg.Message)
		case TypePrompt:
			if _, err := fmt.Fprintln(s.stdin, cb.prompt(msg.Query)); err != nil {
				return fmt.Errorf("answering prompt: %w", err)
			}
		case TypeProgress:
			cb.progress(msg.Ratio, msg.Text)
		case TypeFinished:
			if msg.State != "ok" {
				s.reap()
				return fmt.Errorf("installation failed: %s", msg.Message)
			}
			cb.message(msg.Message)
			s.reap()
			return nil
		}
	}
	if err := scanner.Err(); err != nil {
		s.reap()
		return fmt.Errorf("reading from low-level installer: %w", err)
	}
	s.reap()
	return errors.New("low-level installer closed the stream unexpectedly")
}

func (s *Session) reap() {
	if s.wait == nil {
		return
	}
	if err := s.wait(); err != nil {
		logrus.Warnf("low-level installer exited uncleanly: %v", err)
	}
	s.wait = nil
}
