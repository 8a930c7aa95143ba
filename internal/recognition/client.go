// Package recognition talks to the face-recognition service.
package recognition

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"syscall"
	"time"

	"checkin-system/internal/logging"
	"checkin-system/internal/status"
	"checkin-system/models"

	"github.com/goccy/go-json"
	"github.com/sony/gobreaker/v2"
)

// Recognizer resolves a face image to the best matching attendee.
type Recognizer interface {
	Recognize(ctx context.Context, imageBase64 string) (*models.Recognition, error)
	Health(ctx context.Context) Health
}

type Health struct {
	Available    bool   `json:"available"`
	Status       string `json:"status,omitempty"`
	ModelLoaded  bool   `json:"model_loaded"`
	DatabaseSize int    `json:"database_size"`
	Error        string `json:"error,omitempty"`
}

type Config struct {
	BaseURL       string
	Timeout       time.Duration
	HealthTimeout time.Duration

	BreakerMaxRequests  uint32
	BreakerInterval     time.Duration
	BreakerTimeout      time.Duration
	BreakerFailureRatio float64
}

type Client struct {
	baseURL       string
	http          *http.Client
	healthTimeout time.Duration
	breaker       *gobreaker.CircuitBreaker[*models.Recognition]
}

type recognizeRequest struct {
	Image string `json:"image"`
}

type recognizeResponse struct {
	Users []struct {
		UserID     string  `json:"userId"`
		Name       string  `json:"name"`
		Confidence float64 `json:"confidence"`
		House      string  `json:"house"`
	} `json:"users"`
	DetectedFaces   int `json:"detected_faces"`
	RecognizedFaces int `json:"recognized_faces"`
}

type errorBody struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

func NewClient(cfg Config) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.HealthTimeout <= 0 {
		cfg.HealthTimeout = 5 * time.Second
	}
	ratio := cfg.BreakerFailureRatio
	if ratio <= 0 {
		ratio = 0.6
	}

	log := logging.With("recognition")
	st := gobreaker.Settings{
		Name:        "recognition",
		MaxRequests: cfg.BreakerMaxRequests,
		Interval:    cfg.BreakerInterval,
		Timeout:     cfg.BreakerTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.Requests >= 3 && float64(counts.TotalFailures)/float64(counts.Requests) >= ratio
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn().Str("breaker", name).Str("from", from.String()).Str("to", to.String()).Msg("circuit breaker state changed")
		},
		// Only outages count against the breaker; an unrecognized face is a healthy answer.
		IsSuccessful: func(err error) bool {
			return err == nil || status.KindOf(err) != status.KindServiceUnavailable
		},
	}

	return &Client{
		baseURL:       strings.TrimRight(cfg.BaseURL, "/"),
		http:          &http.Client{Timeout: cfg.Timeout},
		healthTimeout: cfg.HealthTimeout,
		breaker:       gobreaker.NewCircuitBreaker[*models.Recognition](st),
	}
}

// Recognize returns the first (highest confidence) recognized user. No match is
// status.ErrFaceNotFound; outages are ServiceUnavailable errors and are not retried.
func (c *Client) Recognize(ctx context.Context, imageBase64 string) (*models.Recognition, error) {
	rec, err := c.breaker.Execute(func() (*models.Recognition, error) {
		return c.recognize(ctx, imageBase64)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return nil, status.ErrRecognitionDown.WithMessage("AI recognition service is temporarily unavailable").Wrap(err)
	}
	return rec, err
}

func (c *Client) recognize(ctx context.Context, imageBase64 string) (*models.Recognition, error) {
	body, err := json.Marshal(recognizeRequest{Image: imageBase64})
	if err != nil {
		return nil, fmt.Errorf("encode recognize request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/recognize", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build recognize request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	log := logging.With("recognition")
	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		log.Error().Err(err).Msg("recognition request failed")
		return nil, classifyTransportError(err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, classifyTransportError(err)
	}
	elapsed := time.Since(start)

	if resp.StatusCode != http.StatusOK {
		log.Error().Int("status", resp.StatusCode).Bytes("body", truncate(raw, 512)).Msg("recognition service error")
		return nil, classifyStatus(resp.StatusCode, raw)
	}

	var out recognizeResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, status.ErrRecognitionFailed.Wrap(err)
	}

	if len(out.Users) == 0 {
		log.Info().
			Int("detected_faces", out.DetectedFaces).
			Int("recognized_faces", out.RecognizedFaces).
			Dur("elapsed", elapsed).
			Msg("no faces recognized")
		return nil, status.ErrFaceNotFound
	}

	best := out.Users[0]
	log.Info().
		Str("user_id", best.UserID).
		Float64("confidence", best.Confidence).
		Dur("elapsed", elapsed).
		Msg("face recognized")

	return &models.Recognition{
		UserID:          best.UserID,
		Name:            best.Name,
		Confidence:      best.Confidence,
		House:           best.House,
		DetectedFaces:   out.DetectedFaces,
		RecognizedFaces: out.RecognizedFaces,
		ProcessingTime:  elapsed.Milliseconds(),
	}, nil
}

// Health never fails; an unreachable service reports Available=false.
func (c *Client) Health(ctx context.Context) Health {
	ctx, cancel := context.WithTimeout(ctx, c.healthTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/health", nil)
	if err != nil {
		return Health{Error: err.Error()}
	}

	resp, err := c.http.Do(req)
	if err != nil {
		log := logging.With("recognition")
		log.Warn().Err(err).Msg("recognition health check failed")
		return Health{Error: err.Error()}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Health{Error: fmt.Sprintf("health check returned %d", resp.StatusCode)}
	}

	var body struct {
		Status       string `json:"status"`
		ModelLoaded  bool   `json:"model_loaded"`
		DatabaseSize int    `json:"database_size"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return Health{Error: err.Error()}
	}
	if body.Status == "" {
		body.Status = "ok"
	}
	return Health{
		Available:    true,
		Status:       body.Status,
		ModelLoaded:  body.ModelLoaded,
		DatabaseSize: body.DatabaseSize,
	}
}

func classifyTransportError(err error) error {
	if errors.Is(err, syscall.ECONNREFUSED) {
		return status.ErrRecognitionDown.Wrap(err)
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return status.ErrRecognitionTimeout.Wrap(err)
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return status.ErrRecognitionTimeout.Wrap(err)
	}
	return status.ErrRecognitionFailed.Wrap(err)
}

func classifyStatus(code int, raw []byte) error {
	var body errorBody
	_ = json.Unmarshal(raw, &body)
	msg := body.Error
	if msg == "" {
		msg = body.Message
	}

	switch code {
	case http.StatusBadRequest:
		if msg == "" {
			msg = "Face recognition failed"
		}
		return status.ErrFaceNotFound.WithMessage("%s", msg)
	case http.StatusServiceUnavailable:
		return status.ErrRecognitionNotReady
	}
	if msg == "" {
		return status.ErrRecognitionFailed.WithDetail("status", code)
	}
	return status.ErrRecognitionFailed.WithMessage("%s", msg).WithDetail("status", code)
}

func truncate(b []byte, n int) []byte {
	if len(b) > n {
		return b[:n]
	}
	return b
}
