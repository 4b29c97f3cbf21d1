package realtime

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// Dumper receives every raw server message for debugging.
type Dumper interface {
	Dump(raw []byte) error
}

// FileDumper keeps the most recent event, pretty printed, in a single file.
type FileDumper struct {
	path string
	mu   sync.Mutex
}

func NewFileDumper(path string) *FileDumper {
	return &FileDumper{path: path}
}

func (d *FileDumper) Dump(raw []byte) error {
	var pretty bytes.Buffer
	if err := json.Indent(&pretty, raw, "", "  "); err != nil {
		pretty.Reset()
		pretty.Write(raw)
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if dir := filepath.Dir(d.path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("could not create dump directory: %w", err)
		}
	}
	tmp := d.path + ".tmp"
	if err := os.WriteFile(tmp, pretty.Bytes(), 0644); err != nil {
		return fmt.Errorf("could not write event dump: %w", err)
	}
	return os.Rename(tmp, d.path)
}

// Dumpers fans a message out to several dumpers and returns the first error.
type Dumpers []Dumper

func (ds Dumpers) Dump(raw []byte) error {
	var first error
	for _, d := range ds {
		if d == nil {
			continue
		}
		if err := d.Dump(raw); err != nil && first == nil {
			first = err
		}
	}
	return first
}
