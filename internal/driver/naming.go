package driver

import (
	"strings"

	"github.com/distribution/reference"
)

// ContainerPrefix prefixes every driver container name.
const ContainerPrefix = "cyberwave-driver"

// ContainerName returns the deterministic container name for a twin.
func ContainerName(twinUUID string) string {
	short := twinUUID
	if len(short) > 8 {
		short = short[:8]
	}
	return ContainerPrefix + "-" + short
}

// ResolveImage tags an untagged image with the tier name outside
// production, so non-production edges pull the matching driver build
// (e.g. "cyberwaveos/so101" becomes "cyberwaveos/so101:staging").
// Tagged or digested references are returned unchanged.
func ResolveImage(image, tier, productionTier string) string {
	tier = strings.TrimSpace(tier)
	if tier == "" || strings.EqualFold(tier, productionTier) {
		return image
	}
	if hasTagOrDigest(image) {
		return image
	}
	return image + ":" + tier
}

func hasTagOrDigest(image string) bool {
	if named, err := reference.ParseNormalizedNamed(image); err == nil {
		return !reference.IsNameOnly(named)
	}
	// Unparseable references are left to the registry to reject; only the
	// last path segment can carry a tag, a registry port lives before it.
	last := image[strings.LastIndex(image, "/")+1:]
	return strings.ContainsAny(last, ":@")
}
