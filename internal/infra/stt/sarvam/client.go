package sarvam

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/sirupsen/logrus"
)

// Client calls the Sarvam speech-to-text-translate endpoint. Transcribe never
// returns an error: any failure is logged and degrades to an empty transcript,
// which downstream classification treats as "nothing to analyze". Retry policy
// lives with the coordinator's error handling, not here.
type Client struct {
	Endpoint   string
	APIKey     string
	Model      string
	HTTPClient *http.Client
	Log        *logrus.Entry
}

func NewClient(endpoint, apiKey, model string, log *logrus.Entry) *Client {
	return &Client{
		Endpoint:   endpoint,
		APIKey:     apiKey,
		Model:      model,
		HTTPClient: &http.Client{Timeout: 120 * time.Second},
		Log:        log,
	}
}

type transcribeResponse struct {
	Transcript string `json:"transcript"`
}

// Transcribe uploads the canonical WAV and returns the transcript text, or ""
// on any failure.
func (c *Client) Transcribe(ctx context.Context, wavPath string) string {
	log := c.log().WithField("path", wavPath)

	// cheap re-check; the normalizer produced this file one stage earlier
	info, err := os.Stat(wavPath)
	if err != nil || info.Size() == 0 {
		log.Warn("audio file missing or empty, skipping transcription")
		return ""
	}

	f, err := os.Open(wavPath)
	if err != nil {
		log.WithError(err).Error("opening audio for transcription failed")
		return ""
	}
	defer f.Close()

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	if err := mw.WriteField("model", c.Model); err != nil {
		log.WithError(err).Error("building transcription request failed")
		return ""
	}
	if err := mw.WriteField("with_diarization", "false"); err != nil {
		log.WithError(err).Error("building transcription request failed")
		return ""
	}
	fw, err := mw.CreateFormFile("file", filepath.Base(wavPath))
	if err != nil {
		log.WithError(err).Error("building transcription request failed")
		return ""
	}
	if _, err := io.Copy(fw, f); err != nil {
		log.WithError(err).Error("building transcription request failed")
		return ""
	}
	if err := mw.Close(); err != nil {
		log.WithError(err).Error("building transcription request failed")
		return ""
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.Endpoint, &body)
	if err != nil {
		log.WithError(err).Error("building transcription request failed")
		return ""
	}
	req.Header.Set("api-subscription-key", c.APIKey)
	req.Header.Set("Content-Type", mw.FormDataContentType())

	resp, err := c.httpClient().Do(req)
	if err != nil {
		log.WithError(err).Error("transcription request failed")
		return ""
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		b, _ := io.ReadAll(resp.Body)
		log.WithFields(logrus.Fields{
			"status": resp.StatusCode,
			"body":   string(b),
		}).Error("transcription service returned non-2xx")
		return ""
	}

	var tr transcribeResponse
	if err := json.NewDecoder(resp.Body).Decode(&tr); err != nil {
		log.WithError(err).Error("decoding transcription response failed")
		return ""
	}
	return tr.Transcript
}

func (c *Client) httpClient() *http.Client {
	if c.HTTPClient != nil {
		return c.HTTPClient
	}
	return http.DefaultClient
}

func (c *Client) log() *logrus.Entry {
	if c.Log != nil {
		return c.Log
	}
	return logrus.NewEntry(logrus.StandardLogger())
}
