// Package signals is a file-based control channel for a running sweep.
// Dropping a "halt" file into the signals directory stops the run; writing
// a number to params/<name> delivers a named parameter change.
package signals

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

const (
	haltFile  = "halt"
	paramsDir = "params"
)

// ParameterSink receives named parameter changes
type ParameterSink interface {
	SetParameter(name string, value float64) error
}

// Watcher watches a signals directory
type Watcher struct {
	dir    string
	sink   ParameterSink
	onHalt func()

	mu       sync.RWMutex
	halted   bool
	haltOnce sync.Once

	watcher *fsnotify.Watcher
	done    chan struct{}
	wg      sync.WaitGroup
}

// Watch starts watching dir. onHalt runs once, the first time a halt
// signal is seen. sink may be nil if parameter changes are not wanted.
func Watch(dir string, sink ParameterSink, onHalt func()) (*Watcher, error) {
	for _, d := range []string{dir, filepath.Join(dir, paramsDir)} {
		if err := os.MkdirAll(d, 0755); err != nil {
			return nil, fmt.Errorf("create signals directory: %w", err)
		}
	}

	w := &Watcher{
		dir:    dir,
		sink:   sink,
		onHalt: onHalt,
		done:   make(chan struct{}),
	}

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		// ShouldHalt still polls the halt file
		log.Printf("[signals] Warning: file watcher unavailable: %v", err)
		return w, nil
	}
	for _, d := range []string{dir, filepath.Join(dir, paramsDir)} {
		if err := fw.Add(d); err != nil {
			fw.Close()
			log.Printf("[signals] Warning: cannot watch %s: %v", d, err)
			return w, nil
		}
	}
	w.watcher = fw

	w.wg.Add(1)
	go w.loop()
	return w, nil
}

func (w *Watcher) loop() {
	defer w.wg.Done()
	for {
		select {
		case <-w.done:
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) {
				continue
			}
			w.handle(event.Name)
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			log.Printf("[signals] watcher error: %v", err)
		}
	}
}

func (w *Watcher) handle(path string) {
	base := filepath.Base(path)
	switch filepath.Dir(path) {
	case filepath.Clean(w.dir):
		if base == haltFile {
			w.markHalted()
		}
	case filepath.Join(w.dir, paramsDir):
		w.deliver(base, path)
	}
}

func (w *Watcher) deliver(name, path string) {
	if w.sink == nil || strings.HasPrefix(name, ".") {
		return
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return
	}
	raw := strings.TrimSpace(string(data))
	if raw == "" {
		// Create fires before the content lands; the Write event follows
		return
	}
	value, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		log.Printf("[signals] Warning: parameter %s: %q is not a number", name, raw)
		return
	}
	if err := w.sink.SetParameter(name, value); err != nil {
		log.Printf("[signals] Warning: parameter %s: %v", name, err)
		return
	}
	log.Printf("[signals] parameter %s set to %g", name, value)
}

func (w *Watcher) markHalted() {
	w.mu.Lock()
	w.halted = true
	w.mu.Unlock()
	w.haltOnce.Do(func() {
		log.Printf("[signals] halt signal received")
		if w.onHalt != nil {
			w.onHalt()
		}
	})
}

// ShouldHalt reports whether a halt signal has been seen. It also checks
// the file directly in case the watcher missed it.
func (w *Watcher) ShouldHalt() bool {
	if _, err := os.Stat(filepath.Join(w.dir, haltFile)); err == nil {
		w.markHalted()
	}
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.halted
}

// Clear removes the halt file and resets the halt state. onHalt is not
// re-armed.
func (w *Watcher) Clear() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.halted = false
	if err := os.Remove(filepath.Join(w.dir, haltFile)); err != nil && !os.IsNotExist(err) {
		log.Printf("[signals] Warning: could not clear halt file: %v", err)
	}
}

// Close stops the watcher goroutine
func (w *Watcher) Close() error {
	if w.watcher == nil {
		return nil
	}
	close(w.done)
	err := w.watcher.Close()
	w.wg.Wait()
	return err
}

// SendHalt drops a halt file into dir
func SendHalt(dir string) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(dir, haltFile), []byte(time.Now().Format(time.RFC3339)), 0644)
}

// SendParameter publishes a named parameter value. The file is written
// beside the params directory and renamed in so readers never see it half
// written.
func SendParameter(dir, name string, value float64) error {
	if name == "" || strings.ContainsAny(name, `/\`) || strings.HasPrefix(name, ".") {
		return fmt.Errorf("invalid parameter name %q", name)
	}
	target := filepath.Join(dir, paramsDir)
	if err := os.MkdirAll(target, 0755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, ".param-*")
	if err != nil {
		return err
	}
	if _, err := tmp.WriteString(strconv.FormatFloat(value, 'g', -1, 64)); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	return os.Rename(tmp.Name(), filepath.Join(target, name))
}
