package synth

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

const defaultGoogleEndpoint = "https://texttospeech.googleapis.com/v1"

type googleSynth struct {
	endpoint string
	apiKey   string
	encoding string
	client   *http.Client
}

type googleRequest struct {
	Input struct {
		Text string `json:"text"`
	} `json:"input"`
	Voice struct {
		LanguageCode string `json:"languageCode"`
		Name         string `json:"name"`
	} `json:"voice"`
	AudioConfig struct {
		AudioEncoding string  `json:"audioEncoding"`
		SpeakingRate  float64 `json:"speakingRate,omitempty"`
		Pitch         float64 `json:"pitch,omitempty"`
	} `json:"audioConfig"`
}

type googleResponse struct {
	AudioContent string `json:"audioContent"`
}

// NewGoogleSynth talks to the Google Cloud Text-to-Speech REST API.
// encoding selects the container for returned audio ("MP3" or
// "LINEAR16"); endpoint may be overridden for testing.
func NewGoogleSynth(endpoint, apiKey, encoding string) (Synthesizer, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("google synthesizer requires an api key")
	}
	if endpoint == "" {
		endpoint = defaultGoogleEndpoint
	}
	if encoding == "" {
		encoding = "MP3"
	}
	return &googleSynth{
		endpoint: endpoint,
		apiKey:   apiKey,
		encoding: encoding,
		client:   &http.Client{Timeout: 60 * time.Second},
	}, nil
}

func (g *googleSynth) Synthesize(ctx context.Context, req Request) ([]byte, error) {
	if req.Text == "" {
		return nil, ErrEmptyText
	}

	var payload googleRequest
	payload.Input.Text = req.Text
	payload.Voice.LanguageCode = req.Voice.LanguageCode
	payload.Voice.Name = req.Voice.VoiceName
	payload.AudioConfig.AudioEncoding = g.encoding
	payload.AudioConfig.SpeakingRate = req.Voice.SpeakingRate
	payload.AudioConfig.Pitch = req.Voice.Pitch

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}

	url := g.endpoint + "/text:synthesize?key=" + g.apiKey
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := g.client.Do(httpReq)
	if err != nil {
		return nil, &ProviderError{Provider: "google", Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, &ProviderError{
			Provider: "google",
			Status:   resp.StatusCode,
			Err:      fmt.Errorf("%s: %s", resp.Status, bytes.TrimSpace(detail)),
		}
	}

	var out googleResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, &ProviderError{Provider: "google", Err: fmt.Errorf("decode response: %w", err)}
	}
	audio, err := base64.StdEncoding.DecodeString(out.AudioContent)
	if err != nil {
		return nil, &ProviderError{Provider: "google", Err: fmt.Errorf("decode audio content: %w", err)}
	}
	if len(audio) == 0 {
		return nil, &ProviderError{Provider: "google", Err: fmt.Errorf("response carried no audio")}
	}
	return audio, nil
}
