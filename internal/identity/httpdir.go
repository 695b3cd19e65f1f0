package identity

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"
)

// HTTPDirectory talks to the auth provider's admin API
// (GET /admin/users/{id}, GET /admin/users). User fields such as role,
// language and specialization live in a loose user_metadata blob on the
// wire; they are converted to a typed Profile here and nowhere else.
type HTTPDirectory struct {
	BaseURL string
	APIKey  string
	Client  *http.Client
}

func NewHTTPDirectory(baseURL, apiKey string) *HTTPDirectory {
	return &HTTPDirectory{
		BaseURL: baseURL,
		APIKey:  apiKey,
		Client:  &http.Client{Timeout: 10 * time.Second},
	}
}

type wireUser struct {
	ID       string `json:"id"`
	Email    string `json:"email"`
	Metadata struct {
		Name           string `json:"name"`
		Role           string `json:"role"`
		Language       string `json:"language"`
		Specialization string `json:"specialization"`
	} `json:"user_metadata"`
}

type wireUserList struct {
	Users []wireUser `json:"users"`
}

func (w wireUser) profile() Profile {
	return Normalize(Profile{
		ID:             w.ID,
		Email:          w.Email,
		Name:           w.Metadata.Name,
		Role:           w.Metadata.Role,
		Locale:         w.Metadata.Language,
		Specialization: w.Metadata.Specialization,
	})
}

func (d *HTTPDirectory) get(ctx context.Context, path string, out any) error {
	if d.Client == nil {
		return errors.New("identity: http client is nil")
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, d.BaseURL+path, nil)
	if err != nil {
		return err
	}
	if d.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+d.APIKey)
	}

	resp, err := d.Client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("identity: status %d", resp.StatusCode)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func (d *HTTPDirectory) GetUser(ctx context.Context, userID string) (Profile, error) {
	var w wireUser
	if err := d.get(ctx, "/admin/users/"+url.PathEscape(userID), &w); err != nil {
		return Profile{}, err
	}
	if w.ID == "" {
		w.ID = userID
	}
	return w.profile(), nil
}

func (d *HTTPDirectory) ListUsersByRole(ctx context.Context, role string) ([]Profile, error) {
	var list wireUserList
	if err := d.get(ctx, "/admin/users", &list); err != nil {
		return nil, err
	}

	out := make([]Profile, 0, len(list.Users))
	for _, w := range list.Users {
		p := w.profile()
		if p.Role == role {
			out = append(out, p)
		}
	}
	return out, nil
}
