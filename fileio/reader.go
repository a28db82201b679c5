package fileio

import (
	"github.com/ls4154/golwal/db"
)

// SequentialFileReader is a forward-only cursor over a SequentialFile that
// tracks how far it has advanced.
type SequentialFileReader struct {
	file   db.SequentialFile
	offset uint64
}

func NewSequentialFileReader(file db.SequentialFile) *SequentialFileReader {
	return &SequentialFileReader{
		file: file,
	}
}

// Read reads up to n bytes. A short result without an error means the end
// of the file has been reached.
func (r *SequentialFileReader) Read(n int, scratch []byte) ([]byte, error) {
	result, err := r.file.Read(n, scratch)
	r.offset += uint64(len(result))
	return result, err
}

func (r *SequentialFileReader) Skip(n int64) error {
	if err := r.file.Skip(n); err != nil {
		return err
	}
	r.offset += uint64(n)
	return nil
}

// Offset returns the number of bytes read or skipped so far.
func (r *SequentialFileReader) Offset() uint64 {
	return r.offset
}

func (r *SequentialFileReader) File() db.SequentialFile {
	return r.file
}

func (r *SequentialFileReader) Close() error {
	return r.file.Close()
}
