// Package convert transcodes finished WAV recordings into OGG/Opus,
// the compact speech format used for storage and transcription.
package convert

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
)

// Speech-optimized encoder parameters: mono 16 kHz at a voice bitrate.
const (
	DefaultBitrateKbps = 64
	DefaultSampleRate  = 16000
	DefaultChannels    = 1

	// OutputExtension is the suffix of converted recordings.
	OutputExtension = ".opus"
)

// Resolver locates the encoder binary. Injected at construction so the
// search strategy stays out of the conversion logic.
type Resolver func() (string, error)

// DefaultResolver looks for a bundled ffmpeg next to the executable,
// then in a resources directory alongside it, then on PATH.
func DefaultResolver() (string, error) {
	name := "ffmpeg"
	if runtime.GOOS == "windows" {
		name = "ffmpeg.exe"
	}

	if exe, err := os.Executable(); err == nil {
		dir := filepath.Dir(exe)
		for _, candidate := range []string{
			filepath.Join(dir, "binaries", name),
			filepath.Join(dir, "resources", name),
		} {
			if info, err := os.Stat(candidate); err == nil && !info.IsDir() {
				return candidate, nil
			}
		}
	}
	path, err := exec.LookPath(name)
	if err != nil {
		return "", fmt.Errorf("encoder binary not found: %w", err)
	}
	return path, nil
}

// Error carries the encoder's stderr alongside the failure.
type Error struct {
	Stderr string
	Err    error
}

func (e *Error) Error() string {
	if e.Stderr != "" {
		return fmt.Sprintf("conversion failed: %v: %s", e.Err, strings.TrimSpace(e.Stderr))
	}
	return fmt.Sprintf("conversion failed: %v", e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Converter invokes the external encoder with a fixed speech-optimized
// parameter set.
type Converter struct {
	resolve     Resolver
	bitrateKbps int
	sampleRate  int
	channels    int
}

// New builds a converter. A nil resolver falls back to DefaultResolver.
func New(resolve Resolver) *Converter {
	if resolve == nil {
		resolve = DefaultResolver
	}
	return &Converter{
		resolve:     resolve,
		bitrateKbps: DefaultBitrateKbps,
		sampleRate:  DefaultSampleRate,
		channels:    DefaultChannels,
	}
}

// WithEncoding overrides the default encoding parameters. Zero values
// keep the current setting.
func (c *Converter) WithEncoding(bitrateKbps, sampleRate, channels int) *Converter {
	if bitrateKbps > 0 {
		c.bitrateKbps = bitrateKbps
	}
	if sampleRate > 0 {
		c.sampleRate = sampleRate
	}
	if channels > 0 {
		c.channels = channels
	}
	return c
}

// Convert transcodes the WAV at inputPath to Opus, verifies the result
// and deletes the source on success. It returns the output path. On
// failure a partial output file is removed and the source kept.
func (c *Converter) Convert(ctx context.Context, inputPath string) (string, error) {
	if _, err := os.Stat(inputPath); err != nil {
		return "", fmt.Errorf("input file missing: %w", err)
	}
	outputPath := strings.TrimSuffix(inputPath, filepath.Ext(inputPath)) + OutputExtension

	encoder, err := c.resolve()
	if err != nil {
		return "", err
	}

	args := []string{
		"-i", inputPath,
		"-c:a", "libopus",
		"-b:a", strconv.Itoa(c.bitrateKbps) + "k",
		"-ar", strconv.Itoa(c.sampleRate),
		"-ac", strconv.Itoa(c.channels),
		"-y",
		outputPath,
	}
	slog.Debug("running encoder", "binary", encoder, "args", strings.Join(args, " "))

	cmd := exec.CommandContext(ctx, encoder, args...)
	var stderr strings.Builder
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		_ = os.Remove(outputPath)
		return "", &Error{Stderr: stderr.String(), Err: err}
	}

	info, err := os.Stat(outputPath)
	if err != nil {
		return "", &Error{Err: fmt.Errorf("output file was not created: %w", err)}
	}
	if info.Size() == 0 {
		_ = os.Remove(outputPath)
		return "", &Error{Err: fmt.Errorf("output file is empty")}
	}

	if original, err := os.Stat(inputPath); err == nil && original.Size() > 0 {
		reduction := 100 * float64(original.Size()-info.Size()) / float64(original.Size())
		slog.Info("conversion complete", "input", inputPath, "output", outputPath,
			"original_bytes", original.Size(), "converted_bytes", info.Size(),
			"reduction_pct", fmt.Sprintf("%.1f", reduction))
	}

	// The Opus file now serves both playback and transcription; the WAV
	// is dead weight. A failed delete is not a conversion failure.
	if err := os.Remove(inputPath); err != nil {
		slog.Warn("failed to delete source after conversion", "file", inputPath, "error", err)
	}
	return outputPath, nil
}
