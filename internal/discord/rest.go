package discord

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

const defaultBaseURL = "https://discord.com/api/v10"

// Voice-channel scheduled events use entity type 2 and guild-only privacy.
const (
	entityTypeVoice   = 2
	privacyLevelGuild = 2
)

// RESTClient implements Client over the Discord HTTP API. It carries no
// gateway session; IsConnected reflects whether a token and guild are
// configured.
type RESTClient struct {
	http    *http.Client
	baseURL string
	token   string
	guildID string
}

func NewRESTClient(token, guildID string) *RESTClient {
	return &RESTClient{
		http:    &http.Client{Timeout: 10 * time.Second},
		baseURL: defaultBaseURL,
		token:   token,
		guildID: guildID,
	}
}

// WithBaseURL overrides the API endpoint, used by tests.
func (c *RESTClient) WithBaseURL(u string) *RESTClient {
	c.baseURL = u
	return c
}

func (c *RESTClient) IsConnected() bool { return c.token != "" }
func (c *RESTClient) GuildID() string   { return c.guildID }

func (c *RESTClient) SendMessage(ctx context.Context, channelID, content string) (string, error) {
	var msg struct {
		ID string `json:"id"`
	}
	body := map[string]string{"content": content}
	err := c.do(ctx, http.MethodPost, fmt.Sprintf("/channels/%s/messages", channelID), body, &msg)
	if err != nil {
		return "", err
	}
	return msg.ID, nil
}

func (c *RESTClient) EditMessage(ctx context.Context, channelID, messageID, content string) error {
	body := map[string]string{"content": content}
	return c.do(ctx, http.MethodPatch, fmt.Sprintf("/channels/%s/messages/%s", channelID, messageID), body, nil)
}

func (c *RESTClient) CreateScheduledEvent(ctx context.Context, params ScheduledEventParams) (*ScheduledEvent, error) {
	body := map[string]any{
		"channel_id":           params.ChannelID,
		"name":                 params.Name,
		"description":          params.Description,
		"scheduled_start_time": params.StartTime.UTC().Format(time.RFC3339),
		"scheduled_end_time":   params.EndTime.UTC().Format(time.RFC3339),
		"entity_type":          entityTypeVoice,
		"privacy_level":        privacyLevelGuild,
	}
	var ev ScheduledEvent
	err := c.do(ctx, http.MethodPost, fmt.Sprintf("/guilds/%s/scheduled-events", c.guildID), body, &ev)
	if err != nil {
		return nil, err
	}
	return &ev, nil
}

func (c *RESTClient) ModifyScheduledEvent(ctx context.Context, id string, patch ScheduledEventPatch) (*ScheduledEvent, error) {
	body := map[string]any{}
	if patch.Name != nil {
		body["name"] = *patch.Name
	}
	if patch.Description != nil {
		body["description"] = *patch.Description
	}
	if patch.StartTime != nil {
		body["scheduled_start_time"] = patch.StartTime.UTC().Format(time.RFC3339)
	}
	if patch.EndTime != nil {
		body["scheduled_end_time"] = patch.EndTime.UTC().Format(time.RFC3339)
	}
	if patch.Status != nil {
		body["status"] = *patch.Status
	}
	var ev ScheduledEvent
	err := c.do(ctx, http.MethodPatch, fmt.Sprintf("/guilds/%s/scheduled-events/%s", c.guildID, id), body, &ev)
	if err != nil {
		return nil, err
	}
	return &ev, nil
}

func (c *RESTClient) DeleteScheduledEvent(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, fmt.Sprintf("/guilds/%s/scheduled-events/%s", c.guildID, id), nil, nil)
}

func (c *RESTClient) GetScheduledEvent(ctx context.Context, id string) (*ScheduledEvent, error) {
	var ev ScheduledEvent
	err := c.do(ctx, http.MethodGet, fmt.Sprintf("/guilds/%s/scheduled-events/%s", c.guildID, id), nil, &ev)
	if err != nil {
		return nil, err
	}
	return &ev, nil
}

func (c *RESTClient) do(ctx context.Context, method, path string, body, out any) error {
	if !c.IsConnected() {
		return ErrNotConnected
	}

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bot "+c.token)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		apiErr := &APIError{HTTPStatus: resp.StatusCode}
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<16))
		var payload struct {
			Code    int    `json:"code"`
			Message string `json:"message"`
		}
		if json.Unmarshal(data, &payload) == nil {
			apiErr.Code = payload.Code
			apiErr.Message = payload.Message
		}
		return apiErr
	}

	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
