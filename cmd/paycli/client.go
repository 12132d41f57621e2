package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
)

var ErrRequest = errors.New("request failed")

// Subset of the gateway responses the CLI inspects. Everything else is
// printed as received
type (
	Initiated struct {
		SessionId        string `json:"sessionId"`
		Status           string `json:"status"`
		AuthorizationUrl string `json:"authorizationUrl"`
		DebitAmount      struct {
			Value     string `json:"value"`
			AssetCode string `json:"assetCode"`
			Formatted string `json:"formatted"`
		} `json:"debitAmount"`
	}
	Failure struct {
		Error    string   `json:"error"`
		Message  string   `json:"message"`
		Problems []string `json:"problems"`
	}
)

type Client struct {
	Server string
	Client *http.Client
}

func (c *Client) do(ctx context.Context, method, path string, body any) (contents []byte, err error) {
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal body: %w", err)
		}
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, strings.TrimRight(c.Server, "/")+path, reader)
	if err != nil {
		return nil, fmt.Errorf("failed to prepare request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")

	client := c.Client
	if client == nil {
		client = http.DefaultClient
	}
	res, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrRequest, err)
	}
	defer res.Body.Close()

	contents, err = io.ReadAll(res.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	if res.StatusCode < 200 || res.StatusCode > 299 {
		var failure Failure
		if json.Unmarshal(contents, &failure) != nil || failure.Error == "" {
			return contents, fmt.Errorf("%w: status %d", ErrRequest, res.StatusCode)
		}
		msg := fmt.Sprintf("%s: %s", failure.Error, failure.Message)
		if len(failure.Problems) > 0 {
			msg += ": " + strings.Join(failure.Problems, "; ")
		}
		return contents, fmt.Errorf("%w: status %d: %s", ErrRequest, res.StatusCode, msg)
	}
	return contents, nil
}

func sessionPath(id string) string {
	return "/payments/" + url.PathEscape(id)
}

func (c *Client) Initiate(ctx context.Context, receivingWallet string, amount float64) (raw []byte, initiated Initiated, err error) {
	raw, err = c.do(ctx, http.MethodPost, "/payments", map[string]any{
		"receivingWallet": receivingWallet,
		"amount":          amount,
	})
	if err != nil {
		return raw, initiated, err
	}
	err = json.Unmarshal(raw, &initiated)
	if err != nil {
		return raw, initiated, fmt.Errorf("failed to decode response: %w", err)
	}
	return raw, initiated, nil
}

func (c *Client) Complete(ctx context.Context, id string) (raw []byte, err error) {
	return c.do(ctx, http.MethodPost, sessionPath(id)+"/complete", nil)
}

func (c *Client) Status(ctx context.Context, id string) (raw []byte, err error) {
	return c.do(ctx, http.MethodGet, sessionPath(id), nil)
}

func (c *Client) Cancel(ctx context.Context, id string) (raw []byte, err error) {
	return c.do(ctx, http.MethodDelete, sessionPath(id), nil)
}

func (c *Client) Get(ctx context.Context, path string) (raw []byte, err error) {
	return c.do(ctx, http.MethodGet, path, nil)
}
