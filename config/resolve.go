package config

import (
	"maps"
	"os"
	"strings"
)

// EnvPrefix namespaces every runtime setting the edge understands.
const EnvPrefix = "CYBERWAVE_"

const (
	EnvAPIURL       = "CYBERWAVE_API_URL"
	EnvEnvironment  = "CYBERWAVE_ENVIRONMENT"
	EnvMQTTHost     = "CYBERWAVE_MQTT_HOST"
	EnvMQTTPort     = "CYBERWAVE_MQTT_PORT"
	EnvMQTTUsername = "CYBERWAVE_MQTT_USERNAME"
	EnvLogLevel     = "CYBERWAVE_EDGE_LOG_LEVEL"

	DefaultAPIURL   = "https://api.cyberwave.com"
	ProductionTier  = "production"
	DefaultMQTTPort = "1883"
)

// legacyKeys are the flat top-level credential keys honoured for logins
// that predate the "envs" object.
var legacyKeys = []string{EnvAPIURL, EnvEnvironment, EnvMQTTHost, EnvLogLevel}

// Resolver resolves runtime settings. Precedence, highest first: the live
// process environment, the "envs" object of the credentials, allow-listed
// legacy flat credential keys, then the caller default.
type Resolver struct {
	creds     Credentials
	lookupEnv func(string) (string, bool)
}

func NewResolver(creds Credentials) *Resolver {
	return &Resolver{creds: creds, lookupEnv: os.LookupEnv}
}

// NewResolverWithEnv is NewResolver with a custom environment lookup.
func NewResolverWithEnv(creds Credentials, lookupEnv func(string) (string, bool)) *Resolver {
	return &Resolver{creds: creds, lookupEnv: lookupEnv}
}

func (r *Resolver) Resolve(name, def string) string {
	if v, ok := r.lookupEnv(name); ok && strings.TrimSpace(v) != "" {
		return strings.TrimSpace(v)
	}
	if v := strings.TrimSpace(r.creds.Envs[name]); v != "" {
		return v
	}
	if isLegacyKey(name) {
		if v := strings.TrimSpace(r.creds.Legacy[name]); v != "" {
			return v
		}
	}
	return def
}

func (r *Resolver) APIURL() string {
	return strings.TrimRight(r.Resolve(EnvAPIURL, DefaultAPIURL), "/")
}

func (r *Resolver) Tier() string {
	return r.Resolve(EnvEnvironment, ProductionTier)
}

func (r *Resolver) IsProduction() bool {
	return strings.EqualFold(r.Tier(), ProductionTier)
}

func (r *Resolver) MQTTHost() string {
	return r.Resolve(EnvMQTTHost, "")
}

// NamespacedOverrides returns a copy of the persisted "envs" overrides.
func (r *Resolver) NamespacedOverrides() map[string]string {
	return maps.Clone(r.creds.Envs)
}
