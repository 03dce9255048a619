package fake

import (
	"context"
	"fmt"
	"sync"

	"edgecore/internal/boot"
	"edgecore/internal/cloud"
	"edgecore/internal/twin"
)

var _ boot.Cloud = (*Cloud)(nil)

// Cloud is an in-memory cloud API.
type Cloud struct {
	CallRecorder

	mu     sync.Mutex
	Twins  []twin.Twin
	Assets map[string]twin.Asset
	Alerts []cloud.Alert
	Edges  []string

	ValidateTokenErr func(ctx context.Context) error
	RegisterEdgeErr  func(ctx context.Context, fingerprint string) error
	ListTwinsErr     func(ctx context.Context, environmentUUID string) error
	GetAssetErr      func(ctx context.Context, assetUUID string) error
	CreateAlertErr   func(ctx context.Context, alert cloud.Alert) error
}

func (c *Cloud) ValidateToken(ctx context.Context) error {
	c.record("ValidateToken")
	if c.ValidateTokenErr != nil {
		return c.ValidateTokenErr(ctx)
	}
	return nil
}

func (c *Cloud) RegisterEdge(ctx context.Context, fingerprint string) error {
	c.record("RegisterEdge", fingerprint)
	if c.RegisterEdgeErr != nil {
		if err := c.RegisterEdgeErr(ctx, fingerprint); err != nil {
			return err
		}
	}
	c.mu.Lock()
	c.Edges = append(c.Edges, fingerprint)
	c.mu.Unlock()
	return nil
}

func (c *Cloud) ListTwins(ctx context.Context, environmentUUID string) ([]twin.Twin, error) {
	c.record("ListTwins", environmentUUID)
	if c.ListTwinsErr != nil {
		if err := c.ListTwinsErr(ctx, environmentUUID); err != nil {
			return nil, err
		}
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]twin.Twin(nil), c.Twins...), nil
}

func (c *Cloud) GetAsset(ctx context.Context, assetUUID string) (twin.Asset, error) {
	c.record("GetAsset", assetUUID)
	if c.GetAssetErr != nil {
		if err := c.GetAssetErr(ctx, assetUUID); err != nil {
			return twin.Asset{}, err
		}
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	a, ok := c.Assets[assetUUID]
	if !ok {
		return twin.Asset{}, fmt.Errorf("asset %s not found", assetUUID)
	}
	return a, nil
}

func (c *Cloud) CreateAlert(ctx context.Context, alert cloud.Alert) error {
	c.record("CreateAlert", alert)
	if c.CreateAlertErr != nil {
		if err := c.CreateAlertErr(ctx, alert); err != nil {
			return err
		}
	}
	c.mu.Lock()
	c.Alerts = append(c.Alerts, alert)
	c.mu.Unlock()
	return nil
}

// RaisedAlerts returns the alerts accepted so far.
func (c *Cloud) RaisedAlerts() []cloud.Alert {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]cloud.Alert(nil), c.Alerts...)
}
