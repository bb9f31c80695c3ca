package pipe

import (
	"io"
	"io/fs"
	"os"
)

// FS is the filesystem surface an exchange touches.
type FS interface {
	Stat(name string) (fs.FileInfo, error)
	OpenWriter(name string) (io.WriteCloser, error)
	OpenReader(name string) (io.ReadCloser, error)
}

// OSFS opens real named pipes.
type OSFS struct{}

func (OSFS) Stat(name string) (fs.FileInfo, error) {
	return os.Stat(name)
}

func (OSFS) OpenWriter(name string) (io.WriteCloser, error) {
	return os.OpenFile(name, os.O_WRONLY, 0)
}

func (OSFS) OpenReader(name string) (io.ReadCloser, error) {
	return os.Open(name)
}
