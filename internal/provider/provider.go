package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"jam-service/internal/models"
)

// TrackResolver fetches track metadata by id from the music provider.
type TrackResolver interface {
	ResolveTrack(ctx context.Context, platform, trackID string) (models.Track, error)
}

// PlaybackCommander starts playback on a provider device on behalf of a
// participant's credential.
type PlaybackCommander interface {
	Play(ctx context.Context, platform, accessToken, deviceID, trackID string, positionMs int64) error
}

// HTTPGateway talks to the provider gateway service that fronts the actual
// music platforms.
type HTTPGateway struct {
	baseURL string
	client  *http.Client
}

// NewHTTPGateway constructs the gateway client.
func NewHTTPGateway(baseURL string) *HTTPGateway {
	return &HTTPGateway{
		baseURL: baseURL,
		client:  &http.Client{Timeout: 10 * time.Second},
	}
}

// ResolveTrack fetches track metadata.
func (g *HTTPGateway) ResolveTrack(ctx context.Context, platform, trackID string) (models.Track, error) {
	endpoint := fmt.Sprintf("%s/tracks/%s/%s", g.baseURL, url.PathEscape(platform), url.PathEscape(trackID))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return models.Track{}, err
	}

	resp, err := g.client.Do(req)
	if err != nil {
		return models.Track{}, fmt.Errorf("resolve track: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return models.Track{}, fmt.Errorf("resolve track %s: status %d", trackID, resp.StatusCode)
	}

	var track models.Track
	if err := json.NewDecoder(resp.Body).Decode(&track); err != nil {
		return models.Track{}, fmt.Errorf("decode track: %w", err)
	}
	return track, nil
}

// Play issues a playback command for a device.
func (g *HTTPGateway) Play(ctx context.Context, platform, accessToken, deviceID, trackID string, positionMs int64) error {
	body, err := json.Marshal(map[string]interface{}{
		"device_id":   deviceID,
		"track_id":    trackID,
		"position_ms": positionMs,
	})
	if err != nil {
		return err
	}

	endpoint := fmt.Sprintf("%s/playback/%s/play", g.baseURL, url.PathEscape(platform))
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, endpoint, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)
	req.Header.Set("Content-Type", "application/json")

	resp, err := g.client.Do(req)
	if err != nil {
		return fmt.Errorf("playback command: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		return fmt.Errorf("playback command for %s: status %d", trackID, resp.StatusCode)
	}
	return nil
}
