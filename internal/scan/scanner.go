// Package scan builds transcription queue items from local audio files.
package scan

import (
	"encoding/json"
	"fmt"
	"io/fs"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/google/uuid"
)

// SupportedExtensions lists the audio formats the scanner accepts.
var SupportedExtensions = []string{"mp3", "wav", "m4a", "flac", "ogg", "aac", "aiff", "wma"}

// AudioMetadata carries optional probe results for one audio file.
type AudioMetadata struct {
	Codec      string  `json:"codec,omitempty"`
	Bitrate    uint32  `json:"bitrate,omitempty"`
	SampleRate uint32  `json:"sampleRate,omitempty"`
	Channels   uint8   `json:"channels,omitempty"`
	Duration   float64 `json:"duration,omitempty"`
}

// Item is one scanned file ready for the transcription queue.
type Item struct {
	ID       string         `json:"id"`
	Path     string         `json:"path"`
	Name     string         `json:"name"`
	Size     int64          `json:"size"`
	Format   string         `json:"format"`
	Status   string         `json:"status"`
	Metadata *AudioMetadata `json:"metadata,omitempty"`
}

// Scanner validates audio paths and probes metadata via ffprobe when present.
type Scanner struct {
	probe func(path string) *AudioMetadata
	stat  func(string) (os.FileInfo, error)
}

// NewScanner creates a scanner using the real filesystem and ffprobe.
func NewScanner() *Scanner {
	return &Scanner{
		probe: ffprobeMetadata,
		stat:  os.Stat,
	}
}

// NewScannerForTests creates a scanner with injectable dependencies.
func NewScannerForTests(
	probe func(path string) *AudioMetadata,
	stat func(string) (os.FileInfo, error),
) *Scanner {
	return &Scanner{probe: probe, stat: stat}
}

// normalizeExtension returns the lowercased extension without the dot.
func normalizeExtension(path string) string {
	return strings.ToLower(strings.TrimPrefix(filepath.Ext(path), "."))
}

// IsSupportedPath reports whether the path carries a supported audio extension.
func IsSupportedPath(path string) bool {
	ext := normalizeExtension(path)
	for _, candidate := range SupportedExtensions {
		if candidate == ext {
			return true
		}
	}
	return false
}

// validateExtension returns the normalized format or an actionable error.
func validateExtension(path string) (string, error) {
	ext := normalizeExtension(path)
	if ext == "" {
		return "", fmt.Errorf("missing file extension: %s", path)
	}
	if !IsSupportedPath(path) {
		return "", fmt.Errorf("unsupported audio format %q: %s", ext, path)
	}
	return ext, nil
}

// ItemForPath validates one file and builds its queue item.
func (s *Scanner) ItemForPath(path string) (Item, error) {
	info, err := s.stat(path)
	if err != nil {
		return Item{}, fmt.Errorf("path not found: %s", path)
	}
	if info.IsDir() {
		return Item{}, fmt.Errorf("path is not a file: %s", path)
	}

	format, err := validateExtension(path)
	if err != nil {
		return Item{}, err
	}

	return Item{
		ID:       uuid.NewString(),
		Path:     path,
		Name:     filepath.Base(path),
		Size:     info.Size(),
		Format:   format,
		Status:   "idle",
		Metadata: s.probe(path),
	}, nil
}

// ScanFiles builds queue items for an explicit file list.
func (s *Scanner) ScanFiles(paths []string) ([]Item, error) {
	items := make([]Item, 0, len(paths))
	for _, path := range paths {
		item, err := s.ItemForPath(path)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, nil
}

// ScanDirectory walks a directory collecting supported audio files.
// Unsupported files are skipped silently; with recursive disabled only the
// top level is considered.
func (s *Scanner) ScanDirectory(root string, recursive bool) ([]Item, error) {
	var items []Item
	err := filepath.WalkDir(root, func(path string, entry fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if entry.IsDir() {
			if !recursive && path != root {
				return fs.SkipDir
			}
			return nil
		}
		if !IsSupportedPath(path) {
			return nil
		}

		item, err := s.ItemForPath(path)
		if err != nil {
			return nil
		}
		items = append(items, item)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scan directory %s: %w", root, err)
	}
	return items, nil
}

// ffprobePayload maps the subset of ffprobe's JSON output the scanner reads.
type ffprobePayload struct {
	Format struct {
		Duration string `json:"duration"`
		BitRate  string `json:"bit_rate"`
	} `json:"format"`
	Streams []struct {
		CodecType  string `json:"codec_type"`
		CodecName  string `json:"codec_name"`
		SampleRate string `json:"sample_rate"`
		Channels   uint8  `json:"channels"`
	} `json:"streams"`
}

// ffprobeMetadata extracts audio metadata, degrading to nil when ffprobe is
// missing or its output is unusable.
func ffprobeMetadata(path string) *AudioMetadata {
	output, err := exec.Command("ffprobe",
		"-v", "quiet",
		"-print_format", "json",
		"-show_format",
		"-show_streams",
		path,
	).Output()
	if err != nil {
		return nil
	}

	var payload ffprobePayload
	if err := json.Unmarshal(output, &payload); err != nil {
		return nil
	}

	metadata := &AudioMetadata{}
	if duration, err := strconv.ParseFloat(payload.Format.Duration, 64); err == nil {
		metadata.Duration = duration
	}
	if bitrate, err := strconv.ParseUint(payload.Format.BitRate, 10, 32); err == nil {
		metadata.Bitrate = uint32(bitrate)
	}
	for _, stream := range payload.Streams {
		if stream.CodecType != "audio" {
			continue
		}
		metadata.Codec = stream.CodecName
		metadata.Channels = stream.Channels
		if rate, err := strconv.ParseUint(stream.SampleRate, 10, 32); err == nil {
			metadata.SampleRate = uint32(rate)
		}
		break
	}
	return metadata
}
