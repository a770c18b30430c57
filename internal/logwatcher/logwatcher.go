// Package logwatcher forwards the low-level installer's log file into
// the front-end log while a session runs.
package logwatcher

import (
	"fmt"
	"io"
	"strings"

	"github.com/hpcloud/tail"
	"github.com/sirupsen/logrus"
)

// Watcher follows a single log file until stopped.
type Watcher struct {
	tail *tail.Tail
	done chan struct{}
}

// Watch starts following path. Content already present is skipped, only
// lines written during this session are forwarded. The file does not
// have to exist yet.
func Watch(path string) (*Watcher, error) {
	t, err := tail.TailFile(path, tail.Config{
		Follow:   true,
		ReOpen:   true,
		Location: &tail.SeekInfo{Offset: 0, Whence: io.SeekEnd},
		Logger:   tail.DiscardingLogger,
	})
	if err != nil {
		return nil, fmt.Errorf("tailing '%s': %w", path, err)
	}
	w := &Watcher{tail: t, done: make(chan struct{})}
	go w.run()
	return w, nil
}

func (w *Watcher) run() {
	defer close(w.done)
	for line := range w.tail.Lines {
		if line.Err != nil {
			logrus.Warnf("reading %s: %v", w.tail.Filename, line.Err)
			continue
		}
		if text := strings.TrimSpace(line.Text); text != "" {
			logrus.Debugf("installer log: %s", text)
		}
	}
}

// Stop ends the watch and waits for the forwarding goroutine to drain.
func (w *Watcher) Stop() {
	_ = w.tail.Stop()
	<-w.done
}
