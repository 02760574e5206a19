package vision

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/avast/retry-go/v4"
	"github.com/google/uuid"

	"github.com/sleevescan/sleevescan/config"
	"github.com/sleevescan/sleevescan/internal"
	"github.com/sleevescan/sleevescan/pkg/models"
)

var log = internal.GetLogger()

const (
	healthPath     = "/healthz"
	ocrPath        = "/ocr"
	embeddingsPath = "/embeddings/image"
)

// Client talks to the inference sidecar that serves the OCR and image
// embedding models. It is created once at startup and shared by all
// pipeline invocations; the sidecar permits concurrent inference calls.
type Client struct {
	serverURL  string
	httpClient *http.Client
	available  atomic.Bool
}

func NewClient(cfg *config.Config) *Client {
	timeout := cfg.Vision.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		serverURL:  cfg.Vision.ServerURL,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// Start probes the sidecar's health endpoint. Retries here are
// startup-only; per-request inference calls never retry.
func (c *Client) Start(ctx context.Context) error {
	err := retry.Do(
		func() error {
			return c.checkHealth(ctx)
		},
		retry.Attempts(3),
		retry.Delay(time.Second),
		retry.Context(ctx),
	)
	if err != nil {
		c.available.Store(false)
		return fmt.Errorf("vision sidecar unavailable at %s: %w", c.serverURL, err)
	}

	c.available.Store(true)
	log.Infof("vision sidecar available at %s", c.serverURL)

	return nil
}

// Available reports whether the sidecar was reachable at startup. The
// pipeline checks this before every call rather than discovering an
// unavailable model mid-inference.
func (c *Client) Available() bool {
	return c.available.Load()
}

func (c *Client) checkHealth(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.serverURL+healthPath, nil)
	if err != nil {
		return err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("health check returned %d - %s", resp.StatusCode, resp.Status)
	}
	return nil
}

// imageRequest is the wire shape shared by both inference endpoints.
type imageRequest struct {
	Image string `json:"image"`
}

// postImage sends an image to the given inference endpoint and decodes the
// JSON response into out.
func (c *Client) postImage(ctx context.Context, path string, image []byte, out any) error {
	payload := imageRequest{Image: base64.StdEncoding.EncodeToString(image)}
	jsonBody, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(
		ctx,
		http.MethodPost,
		c.serverURL+path,
		bytes.NewBuffer(jsonBody),
	)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	// correlate sidecar logs with pipeline logs
	req.Header.Set("X-Request-ID", uuid.NewString())

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("inference request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf(
			"inference request returned %d - %s: %w",
			resp.StatusCode,
			resp.Status,
			models.ErrInference,
		)
	}

	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}

	return json.Unmarshal(bodyBytes, out)
}
