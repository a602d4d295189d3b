// Package transcribe streams converted recordings to the remote
// transcription endpoint and parses its structured response.
package transcribe

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

const defaultTimeout = 2 * time.Minute

// Transcript is the endpoint's success payload.
type Transcript struct {
	Transcript     string   `json:"transcript"`
	Confidence     *float64 `json:"confidence,omitempty"`
	ProcessingTime *float64 `json:"processing_time,omitempty"`
	WordCount      *int     `json:"word_count,omitempty"`
}

// Words returns the reported word count, or 0 when the endpoint
// omitted it.
func (t *Transcript) Words() int {
	if t.WordCount == nil {
		return 0
	}
	return *t.WordCount
}

// Client submits audio files as streamed multipart uploads.
type Client struct {
	httpClient *http.Client
	endpoint   string
	apiKey     string

	format     string
	sampleRate int
	channels   int
}

// NewClient builds a client for one endpoint. apiKey may be empty, in
// which case no Authorization header is sent.
func NewClient(endpoint, apiKey string) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: defaultTimeout},
		endpoint:   endpoint,
		apiKey:     apiKey,
		format:     "opus",
		sampleRate: 16000,
		channels:   1,
	}
}

// WithAudio overrides the audio metadata fields sent with each upload.
// Zero values keep the current setting.
func (c *Client) WithAudio(sampleRate, channels int) *Client {
	if sampleRate > 0 {
		c.sampleRate = sampleRate
	}
	if channels > 0 {
		c.channels = channels
	}
	return c
}

// Transcribe streams the file at path to the endpoint as multipart form
// data. The audio payload is piped, never buffered whole in memory.
func (c *Client) Transcribe(ctx context.Context, path string) (*Transcript, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening audio file: %w", err)
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return nil, fmt.Errorf("inspecting audio file: %w", err)
	}
	slog.Debug("submitting transcription", "endpoint", c.endpoint,
		"file", filepath.Base(path), "bytes", info.Size())

	pr, pw := io.Pipe()
	form := multipart.NewWriter(pw)
	go func() {
		pw.CloseWithError(c.writeForm(form, file, filepath.Base(path)))
	}()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, pr)
	if err != nil {
		return nil, fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("Content-Type", form.FormDataContentType())
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("sending transcription request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		detail := strings.TrimSpace(string(body))
		if detail == "" {
			detail = resp.Status
		}
		return nil, fmt.Errorf("transcription failed with status %d: %s", resp.StatusCode, detail)
	}

	var transcript Transcript
	if err := json.NewDecoder(resp.Body).Decode(&transcript); err != nil {
		return nil, fmt.Errorf("parsing transcription response: %w", err)
	}
	slog.Info("transcription complete", "file", filepath.Base(path), "words", transcript.Words())
	return &transcript, nil
}

// writeForm emits the multipart body: the streamed audio part followed
// by the fixed format fields.
func (c *Client) writeForm(form *multipart.Writer, file *os.File, filename string) error {
	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition",
		fmt.Sprintf(`form-data; name="audio"; filename=%q`, filename))
	header.Set("Content-Type", mimeType(filename))
	part, err := form.CreatePart(header)
	if err != nil {
		return err
	}
	if _, err := io.Copy(part, file); err != nil {
		return err
	}
	if err := form.WriteField("format", c.format); err != nil {
		return err
	}
	if err := form.WriteField("sample_rate", strconv.Itoa(c.sampleRate)); err != nil {
		return err
	}
	if err := form.WriteField("channels", strconv.Itoa(c.channels)); err != nil {
		return err
	}
	return form.Close()
}

func mimeType(filename string) string {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".opus", ".ogg":
		return "audio/ogg"
	case ".wav":
		return "audio/wav"
	default:
		return "application/octet-stream"
	}
}
