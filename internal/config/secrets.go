package config

// RedactedConfig returns a shallow copy of cfg with sensitive fields replaced
// by the redaction placeholder "***". Use this when logging or printing the
// active configuration so secrets are never accidentally exposed.
func RedactedConfig(cfg *Config) Config {
	out := *cfg // shallow copy of the top-level struct

	redact(&out.Chain.RPCURL)

	out.Postgres = cfg.Postgres
	redact(&out.Postgres.DSN)
	redact(&out.Postgres.Password)

	out.Redis = cfg.Redis
	redact(&out.Redis.Password)

	out.S3 = cfg.S3
	redact(&out.S3.AccessKey)
	redact(&out.S3.SecretKey)

	out.Server = cfg.Server
	redact(&out.Server.APIKey)

	out.Notify = cfg.Notify
	redact(&out.Notify.TelegramToken)
	redact(&out.Notify.DiscordWebhookURL)

	// Copy slices and maps so callers cannot mutate the original through the
	// redacted copy.
	out.Tokens = append([]TokenConfig(nil), cfg.Tokens...)
	out.Sources.OnChain.Venues = append([]VenueConfig(nil), cfg.Sources.OnChain.Venues...)
	out.Notify.Events = append([]string(nil), cfg.Notify.Events...)
	out.Server.CORSOrigins = append([]string(nil), cfg.Server.CORSOrigins...)
	out.Aggregator.MinSources = copyMap(cfg.Aggregator.MinSources)
	out.Aggregator.MaxDeviation = copyMap(cfg.Aggregator.MaxDeviation)
	out.Evaluator.TradeFraction = copyMap(cfg.Evaluator.TradeFraction)
	out.Evaluator.FeeBpsByCategory = copyMap(cfg.Evaluator.FeeBpsByCategory)
	out.Evaluator.ConfidenceFloor = copyMap(cfg.Evaluator.ConfidenceFloor)

	return out
}

const redacted = "***"

// redact replaces a non-empty string with the redacted placeholder.
func redact(s *string) {
	if *s != "" {
		*s = redacted
	}
}

func copyMap[K comparable, V any](m map[K]V) map[K]V {
	if m == nil {
		return nil
	}
	out := make(map[K]V, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
