package store

import (
	"bufio"
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/2389-research/specloom/core"
)

// JsonlLog is an append-only, line-delimited event log. Only the owning
// persister task writes to it; every append is flushed to disk before
// returning.
type JsonlLog struct {
	path string
	file *os.File
}

// OpenJsonl opens (creating if necessary) the log file at path for append.
func OpenJsonl(path string) (*JsonlLog, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, err
	}
	return &JsonlLog{path: path, file: f}, nil
}

// Append serialises event, writes it as one line, and forces it to disk
// before returning.
func (l *JsonlLog) Append(event core.Event) error {
	data, err := json.Marshal(event)
	if err != nil {
		return err
	}
	data = append(data, '\n')
	if _, err := l.file.Write(data); err != nil {
		return err
	}
	return l.file.Sync()
}

// Close closes the underlying file.
func (l *JsonlLog) Close() error {
	return l.file.Close()
}

// ReplayJsonl streams every valid line of the log at path, in file order.
// Blank lines are skipped. A deserialisation failure on a non-blank line is
// returned to the caller.
func ReplayJsonl(path string) ([]core.Event, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	defer f.Close()

	var events []core.Event
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		var event core.Event
		if err := json.Unmarshal(line, &event); err != nil {
			return nil, err
		}
		events = append(events, event)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return events, nil
}

// RepairJsonl truncates a partial trailing record left by a crash mid-append.
// It streams the log, keeps only lines that deserialise as a valid event,
// writes survivors to a sibling temp file, flushes it, atomically renames it
// over the original, and best-effort flushes the parent directory. Repair is
// idempotent: running it twice produces the same surviving lines.
func RepairJsonl(path string) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, err
	}

	var kept [][]byte
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		var event core.Event
		if err := json.Unmarshal(line, &event); err != nil {
			// Partial or corrupt record: drop it.
			continue
		}
		dup := append([]byte(nil), line...)
		kept = append(kept, dup)
	}
	f.Close()

	tmpPath := path + ".tmp"
	tmp, err := os.OpenFile(tmpPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return 0, err
	}
	for _, line := range kept {
		if _, err := tmp.Write(append(line, '\n')); err != nil {
			tmp.Close()
			return 0, err
		}
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return 0, err
	}
	if err := tmp.Close(); err != nil {
		return 0, err
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return 0, err
	}

	if dir, err := os.Open(filepath.Dir(path)); err == nil {
		dir.Sync()
		dir.Close()
	}

	return len(kept), nil
}
