package lookup

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog"
)

// HTTPResolver resolves references against peer services when the onboarding
// service runs against a remote directory and workflow catalog. Failures are
// logged and surface as fallbacks, never as request errors.
type HTTPResolver struct {
	AuthURL     string
	WorkflowURL string
	Token       string
	Client      *http.Client
	Log         zerolog.Logger
}

func (r HTTPResolver) client() *http.Client {
	if r.Client != nil {
		return r.Client
	}
	return &http.Client{Timeout: 5 * time.Second}
}

func (r HTTPResolver) fetch(ctx context.Context, url string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	if r.Token != "" {
		req.Header.Set("Authorization", "Bearer "+r.Token)
	}
	resp, err := r.client().Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %d from %s", resp.StatusCode, url)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func (r HTTPResolver) Users(ctx context.Context, ids []string) map[string]UserRef {
	out := make(map[string]UserRef, len(ids))
	var body struct {
		Users []UserRef `json:"users"`
	}
	if err := r.fetch(ctx, r.AuthURL+"/api/auth/users/all", &body); err != nil {
		r.Log.Warn().Err(err).Msg("peer user lookup failed, using fallbacks")
		return out
	}
	wanted := make(map[string]bool, len(ids))
	for _, id := range ids {
		wanted[id] = true
	}
	for _, u := range body.Users {
		if wanted[u.ID] {
			out[u.ID] = u
		}
	}
	return out
}

func (r HTTPResolver) Workflows(ctx context.Context, ids []string) map[string]WorkflowRef {
	out := make(map[string]WorkflowRef, len(ids))
	var body struct {
		Workflows []WorkflowRef `json:"workflows"`
	}
	if err := r.fetch(ctx, r.WorkflowURL+"/api/workflows", &body); err != nil {
		r.Log.Warn().Err(err).Msg("peer workflow lookup failed, using fallbacks")
		return out
	}
	wanted := make(map[string]bool, len(ids))
	for _, id := range ids {
		wanted[id] = true
	}
	for _, wf := range body.Workflows {
		if wanted[wf.ID] {
			out[wf.ID] = wf
		}
	}
	return out
}
