package transport

import (
	"bytes"
	"context"
	"io"
	"os"

	"github.com/pkg/errors"
)

// File serves a local file. On unix the file is memory mapped; elsewhere
// ranges are read with ReadAt.
type File struct {
	name string
	f    *os.File
	data []byte
	size int64
}

var _ Transport = (*File)(nil)
var _ Streamer = (*File)(nil)

// OpenFile opens name for range reads.
func OpenFile(name string) (*File, error) {
	f, err := os.Open(name)
	if err != nil {
		return nil, errors.Wrapf(err, "open %s", name)
	}
	fi, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, errors.Wrapf(err, "stat %s", name)
	}
	if fi.IsDir() {
		f.Close()
		return nil, errors.Errorf("%s is a directory", name)
	}

	t := &File{name: name, f: f, size: fi.Size()}
	t.data, err = mmapFile(f, t.size)
	if err != nil {
		logger.Debugf("mmap %s: %s, falling back to ReadAt", name, err)
		t.data = nil
	}
	return t, nil
}

// Mapped reports whether the file is memory mapped.
func (t *File) Mapped() bool {
	return t.data != nil
}

func (t *File) Length(context.Context) (int64, error) {
	return t.size, nil
}

func (t *File) FetchRange(ctx context.Context, begin, end int64) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := checkRange(begin, end, t.size); err != nil {
		return nil, err
	}
	if t.data != nil {
		return append([]byte(nil), t.data[begin:end]...), nil
	}
	buf := make([]byte, end-begin)
	if _, err := t.f.ReadAt(buf, begin); err != nil && err != io.EOF {
		return nil, errors.Wrapf(err, "read %s [%d, %d)", t.name, begin, end)
	}
	return buf, nil
}

func (t *File) Stream(context.Context) (io.ReadCloser, error) {
	if t.data != nil {
		return io.NopCloser(bytes.NewReader(t.data)), nil
	}
	return io.NopCloser(io.NewSectionReader(t.f, 0, t.size)), nil
}

func (t *File) Close() error {
	if t.data != nil {
		if err := munmapFile(t.data); err != nil {
			logger.Warnf("munmap %s: %s", t.name, err)
		}
		t.data = nil
	}
	return t.f.Close()
}
