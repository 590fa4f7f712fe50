package extract

import (
	"compress/bzip2"
	"compress/gzip"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
)

// openDecompressed opens path and wraps it in a reader that transparently
// decompresses it based on the file extension, per §6: "compression is
// detected from file extension (.7z, .gz, .bz2); decompression is delegated
// to an external tool invoked with streaming stdout" for the one codec
// (.7z) the standard library cannot read on its own.
//
// The returned closer releases every resource opened along the way (the
// underlying file, and for .7z the subprocess) and must always be called.
func openDecompressed(path string) (io.Reader, io.Closer, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".gz":
		f, err := os.Open(path)
		if err != nil {
			return nil, nil, err
		}
		gz, err := gzip.NewReader(f)
		if err != nil {
			f.Close()
			return nil, nil, fmt.Errorf("gzip: %w", err)
		}
		return gz, multiCloser{gz, f}, nil

	case ".bz2":
		f, err := os.Open(path)
		if err != nil {
			return nil, nil, err
		}
		return bzip2.NewReader(f), f, nil

	case ".7z":
		return open7z(path)

	default:
		f, err := os.Open(path)
		if err != nil {
			return nil, nil, err
		}
		return f, f, nil
	}
}

// open7z streams the sole member of a .7z archive through the external 7z
// tool, reading its stdout as it is produced rather than buffering the
// decompressed file in memory.
func open7z(path string) (io.Reader, io.Closer, error) {
	cmd := exec.Command("7z", "e", "-so", path)
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, nil, fmt.Errorf("7z: stdout pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return nil, nil, fmt.Errorf("7z: start: %w", err)
	}
	return stdout, processCloser{cmd}, nil
}

type multiCloser []io.Closer

func (m multiCloser) Close() error {
	var firstErr error
	for _, c := range m {
		if err := c.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

type processCloser struct {
	cmd *exec.Cmd
}

func (p processCloser) Close() error {
	return p.cmd.Wait()
}
