package anchor

import (
	"bytes"
	"context"
	"encoding/hex"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const defaultCalendarURL = "https://a.pool.opentimestamps.org"

// TimestampBackend anchors hashes through an OpenTimestamps-style calendar
// server, which aggregates submitted digests and commits them to a public
// blockchain. The calendar's pending attestation is returned immediately;
// the final blockchain attestation matures on the calendar's own schedule
// and stays retrievable under the digest.
type TimestampBackend struct {
	calendarURL string
	httpClient  *http.Client
	logger      *zap.Logger
}

// NewTimestampBackend creates a TimestampBackend against the given calendar
// server. An empty URL selects the default public pool calendar.
func NewTimestampBackend(calendarURL string, logger *zap.Logger) *TimestampBackend {
	if calendarURL == "" {
		calendarURL = defaultCalendarURL
	}
	return &TimestampBackend{
		calendarURL: calendarURL,
		httpClient:  &http.Client{Timeout: 15 * time.Second},
		logger:      logger,
	}
}

// Method implements Backend.
func (b *TimestampBackend) Method() Method { return MethodTimestamp }

// Publish implements Backend. The chain-head hash is submitted as a raw
// 32-byte digest to the calendar's digest endpoint.
func (b *TimestampBackend) Publish(ctx context.Context, hash string, sequence int64) (*Record, error) {
	digest, err := hex.DecodeString(hash)
	if err != nil {
		return nil, &BackendError{Method: MethodTimestamp, Err: fmt.Errorf("hash is not hex: %w", err)}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		b.calendarURL+"/digest", bytes.NewReader(digest))
	if err != nil {
		return nil, &BackendError{Method: MethodTimestamp, Err: err}
	}
	req.Header.Set("Content-Type", "application/octet-stream")
	req.Header.Set("Accept", "application/vnd.opentimestamps.v1")

	resp, err := b.httpClient.Do(req)
	if err != nil {
		return nil, &BackendError{Method: MethodTimestamp, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, &BackendError{
			Method: MethodTimestamp,
			Err:    fmt.Errorf("calendar returned %d: %s", resp.StatusCode, snippet),
		}
	}
	// Drain the pending attestation; retrieval goes through the digest URL.
	if _, err := io.Copy(io.Discard, resp.Body); err != nil {
		return nil, &BackendError{Method: MethodTimestamp, Err: fmt.Errorf("read attestation: %w", err)}
	}

	ref := fmt.Sprintf("%s/timestamp/%s", b.calendarURL, hash)
	b.logger.Debug("timestamp anchor submitted",
		zap.Int64("sequence", sequence),
		zap.String("reference", ref),
	)

	return &Record{
		AnchorID:          uuid.New(),
		Timestamp:         time.Now().UTC(),
		Method:            MethodTimestamp,
		ExternalReference: ref,
		AnchoredHash:      hash,
		AnchoredSequence:  sequence,
	}, nil
}
