// Package client talks to the Sip-n-Read HTTP API. It implements the
// submission pipeline's Uploader, Analyzer and Saver.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"
	"time"

	"sipnread/api/internal/llm/types"
	"sipnread/api/internal/models"
)

type Client struct {
	BaseURL string
	Token   string
	HTTP    *http.Client
}

func New(baseURL, token string) *Client {
	return &Client{
		BaseURL: strings.TrimRight(baseURL, "/"),
		Token:   token,
		HTTP:    &http.Client{Timeout: 4 * time.Minute},
	}
}

// APIError is a non-success reply from the server.
type APIError struct {
	Status     int
	Message    string
	Field      string
	Constraint string
}

func (e *APIError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("api %d: %s (field %s, %s)", e.Status, e.Message, e.Field, e.Constraint)
	}
	return fmt.Sprintf("api %d: %s", e.Status, e.Message)
}

type envelope struct {
	Success    bool            `json:"success"`
	Message    string          `json:"message"`
	Field      string          `json:"field"`
	Constraint string          `json:"constraint"`
	Data       json.RawMessage `json:"data"`
}

func (c *Client) Upload(ctx context.Context, index int, jpeg []byte) (string, error) {
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	fw, err := mw.CreateFormFile("file", fmt.Sprintf("image_%d.jpg", index))
	if err != nil {
		return "", err
	}
	if _, err := fw.Write(jpeg); err != nil {
		return "", err
	}
	if err := mw.WriteField("index", strconv.Itoa(index)); err != nil {
		return "", err
	}
	if err := mw.Close(); err != nil {
		return "", err
	}

	var out struct {
		URL string `json:"url"`
	}
	if err := c.do(ctx, http.MethodPost, "/v1/uploads", mw.FormDataContentType(), &body, &out); err != nil {
		return "", err
	}
	return out.URL, nil
}

func (c *Client) Analyze(ctx context.Context, in types.InterpretationRequest) (types.InterpretationResult, error) {
	var out types.InterpretationResult
	err := c.postJSON(ctx, "/v1/flows/analyze", in, &out)
	return out, err
}

func (c *Client) Interpret(ctx context.Context, in types.InterpretRequest) (types.InterpretResponse, error) {
	var out types.InterpretResponse
	err := c.postJSON(ctx, "/v1/flows/interpret", in, &out)
	return out, err
}

func (c *Client) ExtractSymbols(ctx context.Context, text string) ([]types.ExtractedSymbol, error) {
	var out types.ExtractResponse
	if err := c.postJSON(ctx, "/v1/flows/extract-symbols", types.ExtractRequest{Text: text}, &out); err != nil {
		return nil, err
	}
	return out.Symbols, nil
}

func (c *Client) SaveReading(ctx context.Context, in models.ReadingInput) (string, error) {
	var out struct {
		ReadingID string `json:"readingId"`
	}
	if err := c.postJSON(ctx, "/v1/readings", in, &out); err != nil {
		return "", err
	}
	return out.ReadingID, nil
}

func (c *Client) RequestPersonalization(ctx context.Context, readingID, question string) (*models.PersonalizationRequest, error) {
	var out models.PersonalizationRequest
	body := map[string]string{"readingId": readingID, "userQuestion": question}
	if err := c.postJSON(ctx, "/v1/personalization", body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) postJSON(ctx context.Context, path string, in, out any) error {
	b, err := json.Marshal(in)
	if err != nil {
		return err
	}
	return c.do(ctx, http.MethodPost, path, "application/json", bytes.NewReader(b), out)
}

func (c *Client) do(ctx context.Context, method, path, contentType string, body io.Reader, out any) error {
	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, body)
	if err != nil {
		return err
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if c.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.Token)
	}

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 8<<20))
	if err != nil {
		return fmt.Errorf("%s %s: read body: %w", method, path, err)
	}
	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return &APIError{Status: resp.StatusCode, Message: strings.TrimSpace(string(raw))}
	}
	if !env.Success || resp.StatusCode >= 300 {
		return &APIError{Status: resp.StatusCode, Message: env.Message, Field: env.Field, Constraint: env.Constraint}
	}
	if out == nil || len(env.Data) == 0 {
		return nil
	}
	if err := json.Unmarshal(env.Data, out); err != nil {
		return fmt.Errorf("%s %s: bad json response: %w", method, path, err)
	}
	return nil
}
