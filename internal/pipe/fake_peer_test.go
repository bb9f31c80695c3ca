package pipe

import (
	"io"
	"io/fs"
	"os"
	"strings"
	"sync"
	"time"
)

// fakePeer is an in-memory stand-in for Audacity's two pipes.
type fakePeer struct {
	mu sync.Mutex

	exists      map[string]bool
	appearAfter map[string]int
	statCalls   map[string]int

	// respond returns the raw inbound bytes for one command. An empty string
	// leaves the inbound pipe silent.
	respond    func(command string) string
	closeAfter bool

	openReaderErr error

	written      []string
	writerOpens  int
	writerCloses int
	readerOpens  int
	readerCloses int

	inbound *io.PipeWriter
}

func newFakePeer(endpoints Endpoints, respond func(string) string) *fakePeer {
	return &fakePeer{
		exists: map[string]bool{
			endpoints.ToPeer:   true,
			endpoints.FromPeer: true,
		},
		appearAfter: map[string]int{},
		statCalls:   map[string]int{},
		respond:     respond,
	}
}

func echoPeer(command string) string {
	return strings.TrimRight(command, "\r\n\x00") + "\n\n"
}

func (p *fakePeer) Stat(name string) (fs.FileInfo, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.statCalls[name]++
	if after, ok := p.appearAfter[name]; ok && p.statCalls[name] > after {
		p.exists[name] = true
	}
	if !p.exists[name] {
		return nil, &fs.PathError{Op: "stat", Path: name, Err: fs.ErrNotExist}
	}
	return fakeInfo{name: name}, nil
}

func (p *fakePeer) OpenWriter(string) (io.WriteCloser, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.writerOpens++
	return &fakeWriter{peer: p}, nil
}

func (p *fakePeer) OpenReader(string) (io.ReadCloser, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.readerOpens++
	if p.openReaderErr != nil {
		return nil, p.openReaderErr
	}
	pr, pw := io.Pipe()
	p.inbound = pw
	return &fakeReader{PipeReader: pr, peer: p}, nil
}

func (p *fakePeer) counts() (writerOpens, writerCloses, readerOpens, readerCloses int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.writerOpens, p.writerCloses, p.readerOpens, p.readerCloses
}

func (p *fakePeer) writes() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.written...)
}

type fakeWriter struct {
	peer *fakePeer
}

func (w *fakeWriter) Write(b []byte) (int, error) {
	p := w.peer
	p.mu.Lock()
	command := string(b)
	p.written = append(p.written, command)
	inbound := p.inbound
	respond := p.respond
	closeAfter := p.closeAfter
	p.mu.Unlock()

	if respond != nil && inbound != nil {
		if reply := respond(command); reply != "" {
			go func() {
				_, _ = io.WriteString(inbound, reply)
				if closeAfter {
					_ = inbound.Close()
				}
			}()
		}
	}
	return len(b), nil
}

func (w *fakeWriter) Close() error {
	w.peer.mu.Lock()
	defer w.peer.mu.Unlock()
	w.peer.writerCloses++
	return nil
}

type fakeReader struct {
	*io.PipeReader
	peer *fakePeer
}

func (r *fakeReader) Close() error {
	r.peer.mu.Lock()
	r.peer.readerCloses++
	r.peer.mu.Unlock()
	return r.PipeReader.Close()
}

type fakeInfo struct {
	name string
}

func (i fakeInfo) Name() string       { return i.name }
func (i fakeInfo) Size() int64        { return 0 }
func (i fakeInfo) Mode() fs.FileMode  { return os.ModeNamedPipe | 0o600 }
func (i fakeInfo) ModTime() time.Time { return time.Time{} }
func (i fakeInfo) IsDir() bool        { return false }
func (i fakeInfo) Sys() any           { return nil }
