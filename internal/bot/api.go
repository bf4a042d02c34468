package bot

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog/log"
	"github.com/tidwall/gjson"

	"bkmrks/internal/middlewares"
)

const (
	createFromTelegramPath = "/api/v1/bookmarks/create_from_telegram/"

	DefaultTimeout = 10 * time.Second
	DefaultRetries = 3
)

// ErrRejected is returned when the API answered but did not create the bookmark.
var ErrRejected = errors.New("bookmark was not created")

// APIClient posts links to the bookmarks API on behalf of a chat.
type APIClient struct {
	baseURL string
	apiKey  string
	client  *http.Client
	retries uint64
	backOff func() backoff.BackOff
}

func NewAPIClient(baseURL, apiKey string) *APIClient {
	return &APIClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		client:  &http.Client{Timeout: DefaultTimeout},
		retries: DefaultRetries,
		backOff: func() backoff.BackOff {
			b := backoff.NewExponentialBackOff()
			b.InitialInterval = 500 * time.Millisecond
			return b
		},
	}
}

type createRequest struct {
	User struct {
		TelegramID string `json:"telegram_id"`
	} `json:"user"`
	URL string `json:"url"`
}

// CreateBookmark creates a bookmark for the user linked to telegramID and
// returns the URL the API stored. Only transport errors are retried; any answer
// other than 201 is returned as ErrRejected straight away.
func (c *APIClient) CreateBookmark(ctx context.Context, telegramID, url string) (string, error) {
	var reqBody createRequest
	reqBody.User.TelegramID = telegramID
	reqBody.URL = url
	payload, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("failed to encode request: %w", err)
	}

	var stored string
	operation := func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+createFromTelegramPath, bytes.NewReader(payload))
		if err != nil {
			return backoff.Permanent(err)
		}
		req.Header.Set("Content-Type", "application/json")
		if c.apiKey != "" {
			req.Header.Set(middlewares.BotKeyHeader, c.apiKey)
		}

		resp, err := c.client.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()

		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return err
		}

		if resp.StatusCode != http.StatusCreated {
			log.Warn().Int("status", resp.StatusCode).Str("telegram_id", telegramID).Str("body", string(body)).Msg("API rejected bookmark")
			return backoff.Permanent(fmt.Errorf("%w: api answered %d", ErrRejected, resp.StatusCode))
		}
		stored = gjson.GetBytes(body, "url").String()
		return nil
	}

	notify := func(err error, wait time.Duration) {
		log.Warn().Err(err).Dur("retry_in", wait).Str("telegram_id", telegramID).Msg("Create bookmark request failed, retrying")
	}

	policy := backoff.WithContext(backoff.WithMaxRetries(c.backOff(), c.retries), ctx)
	if err := backoff.RetryNotify(operation, policy, notify); err != nil {
		return "", err
	}
	return stored, nil
}
