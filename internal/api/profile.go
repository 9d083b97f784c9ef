package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"enfora/internal/config"
	"enfora/internal/constants"
	"enfora/internal/domain"

	"github.com/valyala/fasthttp"
)

var errNotFound = errors.New("not found")

// ProfileClient looks up display profiles in the external user service.
type ProfileClient struct {
	baseURL string
	apiKey  string
	client  *fasthttp.Client
}

func NewProfileClient(cfg *config.Config) *ProfileClient {
	return &ProfileClient{
		baseURL: strings.TrimRight(cfg.ProfileAPIURL, "/"),
		apiKey:  cfg.ProfileAPIKey,
		client: &fasthttp.Client{
			MaxConnsPerHost:     100,
			ReadTimeout:         10 * time.Second,
			WriteTimeout:        10 * time.Second,
			MaxIdleConnDuration: 1 * time.Minute,
		},
	}
}

// FindProfileByUserID returns nil, nil when the user service has no
// profile for userID.
func (c *ProfileClient) FindProfileByUserID(ctx context.Context, userID string) (*domain.Profile, error) {
	ctx, cancel := context.WithTimeout(ctx, constants.ProfileAPITimeout)
	defer cancel()

	u := fmt.Sprintf("%s/users/%s/profile", c.baseURL, url.PathEscape(userID))
	resp, err := doRequest[ProfileResponse](ctx, c, u)
	if errors.Is(err, errNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to fetch profile for %s: %w", userID, err)
	}

	p := domain.Profile{
		Username:          resp.Data.Username,
		DisplayName:       resp.Data.DisplayName,
		ProfilePictureURL: resp.Data.ProfilePictureURL,
		Tags:              resp.Data.Tags,
	}
	if p.Tags == nil {
		p.Tags = []string{}
	}
	return &p, nil
}

func doRequest[T any](ctx context.Context, client *ProfileClient, url string) (*T, error) {
	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseRequest(req)
	defer fasthttp.ReleaseResponse(resp)

	req.SetRequestURI(url)
	req.Header.SetMethod(fasthttp.MethodGet)
	if client.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+client.apiKey)
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	deadline, ok := ctx.Deadline()
	if ok {
		if err := client.client.DoDeadline(req, resp, deadline); err != nil {
			return nil, err
		}
	} else {
		if err := client.client.Do(req, resp); err != nil {
			return nil, err
		}
	}

	switch resp.StatusCode() {
	case fasthttp.StatusOK:
	case fasthttp.StatusNotFound:
		return nil, errNotFound
	default:
		return nil, fmt.Errorf("API error: %d", resp.StatusCode())
	}

	var result T
	if err := json.Unmarshal(resp.Body(), &result); err != nil {
		return nil, err
	}
	return &result, nil
}

type ProfileResponse struct {
	Data ProfileData `json:"data"`
}

type ProfileData struct {
	UserID            string   `json:"userId"`
	Username          string   `json:"username"`
	DisplayName       string   `json:"displayName"`
	ProfilePictureURL string   `json:"profilePictureUrl"`
	Tags              []string `json:"tags"`
}
