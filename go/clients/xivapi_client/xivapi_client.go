package xivapi_client

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/DarkIrata/ffxiv-act-minioverlay/go/clients"
)

const DefaultAPIRoot = "https://xivapi.com"

type XIVAPIClient struct {
	*clients.BaseClient
}

func NewXIVAPIClient(apiRoot string) *XIVAPIClient {
	if apiRoot == "" {
		apiRoot = DefaultAPIRoot
	}
	client := &XIVAPIClient{
		BaseClient: clients.NewBaseClient(strings.TrimSuffix(apiRoot, "/")),
	}
	client.SetHeader("Accept", "application/json")
	return client
}

type actionIconResponse struct {
	Icon string `json:"Icon"`
}

// ActionIcon returns the absolute icon URL for an action
func (c *XIVAPIClient) ActionIcon(ctx context.Context, actionID int) (string, error) {
	body, err := c.Get(ctx, fmt.Sprintf("/Action/%d?columns=Icon", actionID))
	if err != nil {
		return "", fmt.Errorf("failed to get action %d: %w", actionID, err)
	}

	var response actionIconResponse
	if err := json.Unmarshal(body, &response); err != nil {
		return "", fmt.Errorf("failed to unmarshal response: %w", err)
	}
	if response.Icon == "" {
		return "", fmt.Errorf("action %d has no icon", actionID)
	}

	return c.BaseURL() + "/" + strings.TrimPrefix(response.Icon, "/"), nil
}
