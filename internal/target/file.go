package target

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/gofrs/flock"
	"golang.org/x/sys/unix"

	"vidbridge/internal/engine"
)

// FrameRecord is the line written for each presented frame.
type FrameRecord struct {
	PTS       uint64    `json:"pts"`
	Size      int       `json:"size"`
	Width     int32     `json:"width"`
	Height    int32     `json:"height"`
	Presented time.Time `json:"presented_at"`
}

// File is a render target backed by a JSON-lines file. An exclusive lock on
// "<path>.lock" keeps two processes from rendering into the same sink.
type File struct {
	path     string
	lockPath string
	lock     *flock.Flock

	mu     sync.Mutex
	refs   int
	file   *os.File
	enc    *json.Encoder
	frames uint64
}

// NewFile returns an unopened file target for path.
func NewFile(path string) *File {
	lockPath := path + ".lock"
	return &File{
		path:     path,
		lockPath: lockPath,
		lock:     flock.New(lockPath),
	}
}

func (f *File) Name() string {
	return "file:" + filepath.Base(f.path)
}

// Path returns the sink path.
func (f *File) Path() string {
	return f.path
}

// Acquire opens the sink on the first binding.
func (f *File) Acquire() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.refs > 0 {
		f.refs++
		return nil
	}

	dir := filepath.Dir(f.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create sink directory: %w", err)
	}
	if err := unix.Access(dir, unix.W_OK|unix.X_OK); err != nil {
		return fmt.Errorf("sink directory %s not writable: %w", dir, err)
	}

	ok, err := f.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return fmt.Errorf("render target %s is in use by another process", f.path)
	}

	file, err := os.OpenFile(f.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		_ = f.lock.Unlock()
		return fmt.Errorf("open sink: %w", err)
	}
	f.file = file
	f.enc = json.NewEncoder(file)
	f.refs = 1
	return nil
}

// Release closes the sink once the last binding is gone, flushing written
// frames to stable storage first.
func (f *File) Release() {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.refs == 0 {
		return
	}
	f.refs--
	if f.refs > 0 {
		return
	}
	_ = f.closeLocked()
}

func (f *File) closeLocked() error {
	var errs []error
	if f.file != nil {
		if err := unix.Fdatasync(int(f.file.Fd())); err != nil {
			errs = append(errs, fmt.Errorf("sync sink: %w", err))
		}
		if err := f.file.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close sink: %w", err))
		}
		f.file = nil
		f.enc = nil
	}
	if err := f.lock.Unlock(); err != nil {
		errs = append(errs, fmt.Errorf("release lock: %w", err))
	}
	return errors.Join(errs...)
}

// Present appends one frame record.
func (f *File) Present(frame engine.Frame) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.enc == nil {
		return errors.New("render target not acquired")
	}
	record := FrameRecord{
		PTS:       frame.PTS,
		Size:      frame.Size,
		Width:     frame.Width,
		Height:    frame.Height,
		Presented: time.Now().UTC(),
	}
	if err := f.enc.Encode(record); err != nil {
		return fmt.Errorf("write frame record: %w", err)
	}
	f.frames++
	return nil
}

// Frames returns how many frames have been written through this target.
func (f *File) Frames() uint64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.frames
}

// ReadFrames decodes the frame records stored at path.
func ReadFrames(path string) ([]FrameRecord, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	var records []FrameRecord
	dec := json.NewDecoder(file)
	for dec.More() {
		var record FrameRecord
		if err := dec.Decode(&record); err != nil {
			return records, fmt.Errorf("decode frame record %d: %w", len(records), err)
		}
		records = append(records, record)
	}
	return records, nil
}
