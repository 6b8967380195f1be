package azure

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	appErr "azsnap/pkg/errors"
)

// VMDetails holds the fields needed to snapshot a VM's OS disk.
type VMDetails struct {
	ResourceGroup string `json:"resourceGroup"`
	DiskID        string `json:"diskId"`
}

// CreateSnapshotRequest describes one snapshot creation.
type CreateSnapshotRequest struct {
	Name          string
	ResourceGroup string
	SourceDiskID  string
	Tags          map[string]string
}

// LoginInfo holds the device-flow verification data from az login.
type LoginInfo struct {
	VerificationURL string `json:"login_url"`
	UserCode        string `json:"user_code"`
}

// Client wraps the az CLI with typed operations.
type Client struct {
	runner Runner
}

// NewClient creates a client over the given runner.
func NewClient(runner Runner) *Client {
	return &Client{runner: runner}
}

// CurrentUser returns the signed-in account's user name.
func (c *Client) CurrentUser(ctx context.Context) (string, error) {
	out, err := c.runner.Run(ctx, "account", "show", "--query", "user.name", "-o", "tsv")
	if err != nil {
		return "", appErr.Wrap(err, appErr.NotLoggedIn).
			WithMessage("failed to retrieve user ID from Azure CLI, ensure you are logged in with 'az login'")
	}
	user := strings.TrimSpace(out)
	if user == "" {
		return "", appErr.New(appErr.NotLoggedIn)
	}
	return user, nil
}

// SetSubscription switches the active subscription.
func (c *Client) SetSubscription(ctx context.Context, subscriptionID string) error {
	if subscriptionID == "" {
		return appErr.ValidationError("subscription_id", "required")
	}
	if _, err := c.runner.Run(ctx, "account", "set", "--subscription", subscriptionID); err != nil {
		return appErr.Wrapf(err, appErr.SubscriptionSwitchFailed, "failed to set subscription %s", subscriptionID)
	}
	return nil
}

// VMDetails resolves resource group and OS disk id for a VM resource id.
func (c *Client) VMDetails(ctx context.Context, resourceID string) (VMDetails, error) {
	if resourceID == "" {
		return VMDetails{}, appErr.ValidationError("resource_id", "required")
	}
	out, err := c.runner.Run(ctx,
		"vm", "show", "--ids", resourceID,
		"--query", "{resourceGroup:resourceGroup, diskId:storageProfile.osDisk.managedDisk.id}",
		"-o", "json",
	)
	if err != nil {
		return VMDetails{}, appErr.Wrap(err, appErr.VMDetailsFailed)
	}

	var details VMDetails
	if err := json.Unmarshal([]byte(out), &details); err != nil {
		return VMDetails{}, appErr.Wrapf(err, appErr.VMDetailsFailed, "decode vm details failed")
	}
	if details.ResourceGroup == "" || details.DiskID == "" {
		return VMDetails{}, appErr.New(appErr.VMDetailsFailed).WithMessage("vm details incomplete")
	}
	return details, nil
}

// CreateSnapshot creates a disk snapshot and returns its resource id.
func (c *Client) CreateSnapshot(ctx context.Context, req CreateSnapshotRequest) (string, error) {
	if req.Name == "" || req.ResourceGroup == "" || req.SourceDiskID == "" {
		return "", appErr.ValidationError("snapshot", "name, resource group and source disk are required")
	}

	args := []string{
		"snapshot", "create",
		"--name", req.Name,
		"--resource-group", req.ResourceGroup,
		"--source", req.SourceDiskID,
	}
	if len(req.Tags) > 0 {
		args = append(args, "--tags")
		args = append(args, formatTags(req.Tags)...)
	}

	out, err := c.runner.Run(ctx, args...)
	if err != nil {
		return "", appErr.Wrap(err, appErr.SnapshotCreateFailed)
	}

	var payload struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal([]byte(out), &payload); err != nil {
		return "", appErr.Wrapf(err, appErr.SnapshotIDMissing, "decode snapshot response failed")
	}
	if payload.ID == "" {
		return "", appErr.New(appErr.SnapshotIDMissing)
	}
	return payload.ID, nil
}

// DeleteSnapshot deletes a snapshot by resource id.
func (c *Client) DeleteSnapshot(ctx context.Context, snapshotID string) error {
	if snapshotID == "" {
		return appErr.ValidationError("snapshot_id", "required")
	}
	if _, err := c.runner.Run(ctx, "snapshot", "delete", "--ids", snapshotID); err != nil {
		return appErr.Wrapf(err, appErr.SnapshotDeleteFailed, "failed to delete snapshot %s", snapshotID)
	}
	return nil
}

// StartLogin runs az login and returns the device verification URL and code.
func (c *Client) StartLogin(ctx context.Context) (LoginInfo, error) {
	out, err := c.runner.Run(ctx, "login")
	if err != nil {
		return LoginInfo{}, appErr.Wrap(err, appErr.LoginFailed)
	}

	var accounts []struct {
		VerificationURL string `json:"verificationUrl"`
		UserCode        string `json:"userCode"`
	}
	if err := json.Unmarshal([]byte(out), &accounts); err != nil || len(accounts) == 0 {
		return LoginInfo{}, appErr.New(appErr.LoginFailed).WithMessage("unexpected az login output")
	}
	return LoginInfo{
		VerificationURL: accounts[0].VerificationURL,
		UserCode:        accounts[0].UserCode,
	}, nil
}

// SubscriptionFromResourceID extracts the subscription id from an ARM resource id.
// Resource ids look like /subscriptions/<sub>/resourceGroups/<rg>/...
func SubscriptionFromResourceID(resourceID string) (string, error) {
	parts := strings.Split(resourceID, "/")
	if len(parts) < 3 || !strings.EqualFold(parts[1], "subscriptions") || parts[2] == "" {
		return "", fmt.Errorf("malformed resource id: %s", resourceID)
	}
	return parts[2], nil
}

// formatTags renders tags as key=value arguments in a stable order.
func formatTags(tags map[string]string) []string {
	keys := make([]string, 0, len(tags))
	for k := range tags {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := make([]string, 0, len(keys))
	for _, k := range keys {
		out = append(out, fmt.Sprintf("%s=%s", k, tags[k]))
	}
	return out
}
