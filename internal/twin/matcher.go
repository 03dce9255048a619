package twin

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
)

// AssetGetter fetches asset definitions.
type AssetGetter interface {
	GetAsset(ctx context.Context, assetUUID string) (Asset, error)
}

// Assignment is a twin claimed by this edge with its resolved driver.
type Assignment struct {
	Twin   Twin
	Asset  Asset
	Driver Driver
}

// Failure is a twin that was claimed by this edge but could not be resolved.
type Failure struct {
	Twin Twin
	Err  error
}

// Misconfigured reports whether the failure comes from a bad descriptor
// rather than a transient error.
func (f Failure) Misconfigured() bool {
	var de *DescriptorError
	return errors.As(f.Err, &de)
}

// Matcher selects the twins assigned to this edge and resolves their drivers.
type Matcher struct {
	assets   AssetGetter
	selector Selector
	log      *slog.Logger
}

func NewMatcher(assets AssetGetter, selector Selector) *Matcher {
	if selector == nil {
		selector = DefaultSelector{}
	}
	return &Matcher{
		assets:   assets,
		selector: selector,
		log:      slog.With("component", "twin-matcher"),
	}
}

// Claimed returns the twins whose metadata.edge_fingerprint equals
// fingerprint exactly, in input order. An empty fingerprint claims nothing.
func Claimed(twins []Twin, fingerprint string) []Twin {
	if fingerprint == "" {
		return nil
	}
	var out []Twin
	for _, t := range twins {
		if t.EdgeFingerprint() == fingerprint {
			out = append(out, t)
		}
	}
	return out
}

// MatchAndResolve claims twins for fingerprint and resolves a driver for
// each. A failure resolving one twin is recorded and the rest continue.
func (m *Matcher) MatchAndResolve(ctx context.Context, twins []Twin, fingerprint string) ([]Assignment, []Failure) {
	var (
		assigned []Assignment
		failed   []Failure
	)
	for _, t := range Claimed(twins, fingerprint) {
		m.log.Info("Twin is linked to this edge.", "twin", t.DisplayName(), "twin_uuid", t.UUID, "fingerprint", fingerprint)

		a, err := m.resolve(ctx, t)
		if err != nil {
			m.log.Warn("Failed to resolve driver for twin.", "twin", t.DisplayName(), "twin_uuid", t.UUID, "err", err)
			failed = append(failed, Failure{Twin: t, Err: err})
			continue
		}
		assigned = append(assigned, a)
	}
	return assigned, failed
}

func (m *Matcher) resolve(ctx context.Context, t Twin) (Assignment, error) {
	if t.AssetUUID == "" {
		return Assignment{}, fmt.Errorf("twin %s has no asset_uuid", t.UUID)
	}
	asset, err := m.assets.GetAsset(ctx, t.AssetUUID)
	if err != nil {
		return Assignment{}, fmt.Errorf("get asset %s: %w", t.AssetUUID, err)
	}

	rawDrivers := t.Metadata[metaDrivers]
	if !present(rawDrivers) {
		rawDrivers = asset.Metadata[metaDrivers]
		if present(rawDrivers) {
			m.log.Info("Twin has no drivers, using asset drivers.", "twin", t.DisplayName(), "asset_uuid", asset.UUID)
		}
	}
	table, err := ParseDriverTable(rawDrivers)
	if err != nil {
		return Assignment{}, err
	}
	d, err := m.selector.Select(table)
	if err != nil {
		return Assignment{}, err
	}
	return Assignment{Twin: t, Asset: asset, Driver: d}, nil
}
