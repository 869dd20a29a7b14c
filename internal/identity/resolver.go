package identity

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"jam-service/internal/models"
)

// Participant is a resolved, already-authenticated connection identity as
// supplied by the external auth/session layer.
type Participant struct {
	SessionID          string `json:"session_id"`
	Username           string `json:"username"`
	AvatarURL          string `json:"avatar_url,omitempty"`
	Provider           string `json:"provider,omitempty"`
	ProviderAccountURL string `json:"provider_account_url,omitempty"`
	Role               string `json:"role"`
}

// Member converts the participant into a session member record.
func (p Participant) Member() models.Member {
	role := p.Role
	if role == "" {
		role = models.RoleGuest
	}
	return models.Member{
		SessionID:          p.SessionID,
		Username:           p.Username,
		AvatarURL:          p.AvatarURL,
		Provider:           p.Provider,
		ProviderAccountURL: p.ProviderAccountURL,
		Role:               role,
		JoinTime:           time.Now(),
	}
}

// Resolver resolves an opaque bearer token to a participant identity.
type Resolver interface {
	Resolve(ctx context.Context, token string) (Participant, error)
}

// HTTPResolver calls the external auth service over HTTP.
type HTTPResolver struct {
	baseURL string
	client  *http.Client
}

// NewHTTPResolver constructs the resolver against the auth service base URL.
func NewHTTPResolver(baseURL string) *HTTPResolver {
	return &HTTPResolver{
		baseURL: baseURL,
		client:  &http.Client{Timeout: 5 * time.Second},
	}
}

// Resolve validates the token against the auth service and returns the
// participant it identifies.
func (r *HTTPResolver) Resolve(ctx context.Context, token string) (Participant, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, r.baseURL+"/internal/session", nil)
	if err != nil {
		return Participant{}, err
	}
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := r.client.Do(req)
	if err != nil {
		return Participant{}, fmt.Errorf("resolve identity: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Participant{}, fmt.Errorf("resolve identity: status %d", resp.StatusCode)
	}

	var participant Participant
	if err := json.NewDecoder(resp.Body).Decode(&participant); err != nil {
		return Participant{}, fmt.Errorf("decode identity: %w", err)
	}
	if participant.SessionID == "" {
		return Participant{}, fmt.Errorf("resolve identity: empty session id")
	}
	return participant, nil
}
