// Package transcribe holds the external collaborators of the transcription
// stage: the audio downloader and the speech-to-text model. Both are opaque
// to the pipeline: bytes in, text out.
package transcribe

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// Downloader fetches audio bytes from a URL.
type Downloader interface {
	Download(ctx context.Context, url string) ([]byte, error)
}

// Transcriber converts audio bytes to text.
type Transcriber interface {
	Transcribe(ctx context.Context, audio []byte, model string) (string, error)
}

// HTTPDownloader implements Downloader with a bounded GET.
type HTTPDownloader struct {
	client   *http.Client
	maxBytes int64
}

// NewHTTPDownloader creates a downloader that refuses bodies larger than
// maxBytes.
func NewHTTPDownloader(client *http.Client, maxBytes int64) *HTTPDownloader {
	if client == nil {
		client = http.DefaultClient
	}
	return &HTTPDownloader{client: client, maxBytes: maxBytes}
}

func (d *HTTPDownloader) Download(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("build download request: %w", err)
	}

	resp, err := d.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("download audio: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusPartialContent {
		return nil, fmt.Errorf("download audio: unexpected status %d", resp.StatusCode)
	}
	if resp.ContentLength > d.maxBytes {
		return nil, fmt.Errorf("download audio: %d bytes exceeds limit %d", resp.ContentLength, d.maxBytes)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, d.maxBytes+1))
	if err != nil {
		return nil, fmt.Errorf("read audio body: %w", err)
	}
	if int64(len(body)) > d.maxBytes {
		return nil, fmt.Errorf("download audio: body exceeds limit %d", d.maxBytes)
	}
	return body, nil
}

// HTTPTranscriber implements Transcriber against a whisper-server style
// inference endpoint that accepts raw audio and returns {"text": "..."}.
type HTTPTranscriber struct {
	endpoint     string
	defaultModel string
	client       *http.Client
}

// NewHTTPTranscriber creates a transcriber for the given endpoint.
// defaultModel is used for jobs submitted without an explicit model hint;
// empty means let the server pick.
func NewHTTPTranscriber(endpoint, defaultModel string, client *http.Client) *HTTPTranscriber {
	if client == nil {
		client = http.DefaultClient
	}
	return &HTTPTranscriber{endpoint: endpoint, defaultModel: defaultModel, client: client}
}

func (t *HTTPTranscriber) Transcribe(ctx context.Context, audio []byte, model string) (string, error) {
	if model == "" {
		model = t.defaultModel
	}
	url := t.endpoint
	if model != "" {
		url += "?model=" + model
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(audio))
	if err != nil {
		return "", fmt.Errorf("build transcribe request: %w", err)
	}
	req.Header.Set("Content-Type", "application/octet-stream")

	resp, err := t.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("transcribe: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", fmt.Errorf("transcribe: unexpected status %d: %s", resp.StatusCode, snippet)
	}

	var out struct {
		Text string `json:"text"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("decode transcription: %w", err)
	}
	text := strings.TrimSpace(out.Text)
	if text == "" {
		return "", fmt.Errorf("transcribe: empty transcription returned")
	}
	return text, nil
}
