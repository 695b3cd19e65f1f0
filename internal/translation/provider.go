package translation

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// Provider is the external translation capability. It is only invoked
// on cache miss.
type Provider interface {
	LocalizeText(ctx context.Context, text, sourceLocale, targetLocale string) (string, error)
}

// LingoProvider calls a lingo.dev-style localization HTTP API.
type LingoProvider struct {
	BaseURL string
	APIKey  string
	Client  *http.Client
}

func NewLingoProvider(baseURL, apiKey string) *LingoProvider {
	if baseURL == "" {
		baseURL = "https://engine.lingo.dev"
	}
	return &LingoProvider{
		BaseURL: baseURL,
		APIKey:  apiKey,
		Client:  &http.Client{Timeout: 30 * time.Second},
	}
}

type lingoReq struct {
	Text         string `json:"text"`
	SourceLocale string `json:"sourceLocale"`
	TargetLocale string `json:"targetLocale"`
}

type lingoResp struct {
	TranslatedText string `json:"translatedText"`
	Error          string `json:"error,omitempty"`
}

func (p *LingoProvider) LocalizeText(ctx context.Context, text, sourceLocale, targetLocale string) (string, error) {
	if p.Client == nil {
		return "", errors.New("lingo: http client is nil")
	}
	if strings.TrimSpace(p.APIKey) == "" {
		return "", errors.New("lingo: api key is required")
	}

	b, err := json.Marshal(lingoReq{
		Text:         text,
		SourceLocale: sourceLocale,
		TargetLocale: targetLocale,
	})
	if err != nil {
		return "", err
	}

	url := fmt.Sprintf("%s/localize/text", strings.TrimRight(p.BaseURL, "/"))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(b))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+p.APIKey)

	resp, err := p.Client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("lingo: status %d", resp.StatusCode)
	}

	var decoded lingoResp
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return "", err
	}
	if decoded.Error != "" {
		return "", errors.New(decoded.Error)
	}
	return decoded.TranslatedText, nil
}
