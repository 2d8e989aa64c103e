package camera

import (
	"bufio"
	"bytes"
	"io"
)

var (
	jpegSOI = []byte{0xFF, 0xD8}
	jpegEOI = []byte{0xFF, 0xD9}
)

const (
	scanInitialBuffer = 1 << 20
	scanMaxBuffer     = 16 << 20
)

// SplitJPEG is a bufio.SplitFunc that yields whole JPEG images from an MJPEG
// byte stream using the SOI and EOI markers. Bytes before an SOI are skipped.
func SplitJPEG(data []byte, atEOF bool) (advance int, token []byte, err error) {
	if atEOF && len(data) == 0 {
		return 0, nil, nil
	}
	start := bytes.Index(data, jpegSOI)
	if start == -1 {
		if atEOF {
			return len(data), nil, nil
		}
		// keep a trailing 0xFF that may begin an SOI
		if len(data) > 1 {
			return len(data) - 1, nil, nil
		}
		return 0, nil, nil
	}
	end := bytes.Index(data[start+len(jpegSOI):], jpegEOI)
	if end == -1 {
		if atEOF {
			return len(data), nil, nil
		}
		return start, nil, nil
	}
	stop := start + len(jpegSOI) + end + len(jpegEOI)
	return stop, data[start:stop], nil
}

// newJPEGScanner returns a scanner over an MJPEG stream.
func newJPEGScanner(r io.Reader) *bufio.Scanner {
	s := bufio.NewScanner(r)
	s.Buffer(make([]byte, scanInitialBuffer), scanMaxBuffer)
	s.Split(SplitJPEG)
	return s
}
