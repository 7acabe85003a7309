// Package mp3check confirms that an encoded MP3 actually contains audio frames.
package mp3check

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/tcolgate/mp3"
)

// ErrNoFrames reports an MP3 file without a single decodable frame.
var ErrNoFrames = errors.New("no mp3 frames decoded")

// Report summarizes a frame walk.
type Report struct {
	Frames       int
	Duration     time.Duration
	SkippedBytes int
}

// VerifyFile walks every frame in path.
func VerifyFile(path string) (Report, error) {
	f, err := os.Open(path)
	if err != nil {
		return Report{}, fmt.Errorf("open mp3: %w", err)
	}
	defer f.Close()
	return Verify(bufio.NewReader(f))
}

// Verify walks frames until EOF. A truncated final frame ends the walk
// without error; zero frames is ErrNoFrames.
func Verify(r io.Reader) (Report, error) {
	var (
		report  Report
		frame   mp3.Frame
		skipped int
	)
	d := mp3.NewDecoder(r)
	for {
		if err := d.Decode(&frame, &skipped); err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
				break
			}
			return report, fmt.Errorf("decode frame %d: %w", report.Frames+1, err)
		}
		report.Frames++
		report.SkippedBytes += skipped
		report.Duration += frame.Duration()
	}
	if report.Frames == 0 {
		return report, ErrNoFrames
	}
	return report, nil
}
