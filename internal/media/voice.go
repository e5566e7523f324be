package media

import (
	"fmt"
	"os"
	"time"

	"github.com/go-audio/wav"
)

// AudioInfo summarizes a WAV file's format, as reported by ProbeWAV.
type AudioInfo struct {
	Duration   time.Duration
	SampleRate int
	Channels   int
}

// ProbeWAV reads a WAV file's header to report its duration and format
// without decoding the full sample data. go-audio/wav only understands the
// WAV container, so Opus/OGG files cannot be probed this way. The ingestion
// pipeline does not call ProbeWAV: every downloaded voice file goes straight
// to the transcription adapter, which handles format detection itself.
func ProbeWAV(path string) (AudioInfo, error) {
	f, err := os.Open(path)
	if err != nil {
		return AudioInfo{}, fmt.Errorf("open audio file: %w", err)
	}
	defer f.Close()

	decoder := wav.NewDecoder(f)
	decoder.ReadInfo()
	if !decoder.IsValidFile() {
		return AudioInfo{}, fmt.Errorf("not a valid WAV file: %s", path)
	}

	duration, err := decoder.Duration()
	if err != nil {
		return AudioInfo{}, fmt.Errorf("read WAV duration: %w", err)
	}

	return AudioInfo{
		Duration:   duration,
		SampleRate: int(decoder.SampleRate),
		Channels:   int(decoder.NumChans),
	}, nil
}
