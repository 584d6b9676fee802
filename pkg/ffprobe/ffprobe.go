// Package ffprobe wraps the ffprobe binary for reading technicals off
// downloaded audio files. Probing is best effort: a file whose
// technicals cannot be read still lands in the library, it just gets
// thinner catalog columns.
package ffprobe

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
	"time"
)

// ErrBinaryNotFound is returned when the ffprobe binary is not on PATH.
var ErrBinaryNotFound = errors.New("ffprobe binary not found")

// Prober runs ffprobe with a per-call timeout.
type Prober struct {
	path    string
	timeout time.Duration
}

// New creates a new Prober instance.
func New(path string, timeout time.Duration) *Prober {
	if path == "" {
		path = "ffprobe"
	}
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	return &Prober{path: path, timeout: timeout}
}

// ValidateBinary checks that ffprobe is available.
func (p *Prober) ValidateBinary() error {
	if _, err := exec.LookPath(p.path); err != nil {
		return fmt.Errorf("%w: %s", ErrBinaryNotFound, p.path)
	}
	return nil
}

// AudioInfo is what the catalog keeps about a finished audio file.
type AudioInfo struct {
	DurationSeconds float64
	Codec           string
	Container       string
	BitrateKbps     int
	Channels        int
	SampleRateHz    int
	SizeBytes       int64
}

// probeOutput mirrors the ffprobe JSON document, format section plus
// the selected audio stream.
type probeOutput struct {
	Format struct {
		Duration   string `json:"duration"`
		Size       string `json:"size"`
		Bitrate    string `json:"bit_rate"`
		FormatName string `json:"format_name"`
	} `json:"format"`
	Streams []struct {
		CodecType  string `json:"codec_type"`
		CodecName  string `json:"codec_name"`
		SampleRate string `json:"sample_rate"`
		Channels   int    `json:"channels"`
		Duration   string `json:"duration"`
	} `json:"streams"`
}

// Probe reads format and first-audio-stream data from one file.
func (p *Prober) Probe(ctx context.Context, filePath string) (*AudioInfo, error) {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	args := []string{
		"-v", "quiet",
		"-show_format",
		"-show_streams",
		"-select_streams", "a:0",
		"-of", "json",
		filePath,
	}
	cmd := exec.CommandContext(ctx, p.path, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			return nil, fmt.Errorf("probing audio: %w (stderr: %s)", err, msg)
		}
		return nil, fmt.Errorf("probing audio: %w", err)
	}

	var doc probeOutput
	if err := json.Unmarshal(stdout.Bytes(), &doc); err != nil {
		return nil, fmt.Errorf("parsing ffprobe output: %w", err)
	}

	info := parseProbe(&doc)
	if info.Codec == "" {
		return nil, fmt.Errorf("no audio stream in %s", filePath)
	}
	return info, nil
}

func parseProbe(doc *probeOutput) *AudioInfo {
	info := &AudioInfo{}

	if doc.Format.Duration != "" {
		if d, err := strconv.ParseFloat(doc.Format.Duration, 64); err == nil {
			info.DurationSeconds = d
		}
	}
	if doc.Format.Size != "" {
		if size, err := strconv.ParseInt(doc.Format.Size, 10, 64); err == nil {
			info.SizeBytes = size
		}
	}
	if doc.Format.Bitrate != "" {
		if bitrate, err := strconv.Atoi(doc.Format.Bitrate); err == nil {
			info.BitrateKbps = bitrate / 1000
		}
	}
	// format_name lists aliases like "mov,mp4,m4a,3gp,3g2,mj2"; the
	// first token is the container the muxer actually picked.
	if name, _, found := strings.Cut(doc.Format.FormatName, ","); found || name != "" {
		info.Container = name
	}

	for _, stream := range doc.Streams {
		if stream.CodecType != "audio" {
			continue
		}
		info.Codec = stream.CodecName
		info.Channels = stream.Channels
		if stream.SampleRate != "" {
			if rate, err := strconv.Atoi(stream.SampleRate); err == nil {
				info.SampleRateHz = rate
			}
		}
		if info.DurationSeconds == 0 && stream.Duration != "" {
			if d, err := strconv.ParseFloat(stream.Duration, 64); err == nil {
				info.DurationSeconds = d
			}
		}
		break
	}

	return info
}
