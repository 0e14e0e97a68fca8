package config

import "slices"

const redactedPlaceholder = "***"

// RedactedConfig returns a copy of cfg that is safe to log: credentials and
// secret-bearing URLs are masked and slices are cloned.
func RedactedConfig(cfg *Config) Config {
	out := *cfg

	secrets := []*string{
		&out.Server.APIKey,
		&out.Postgres.DSN,
		&out.Postgres.Password,
		&out.Redis.Password,
		&out.S3.AccessKey,
		&out.S3.SecretKey,
		&out.Notify.TelegramToken,
		&out.Notify.DiscordWebhookURL,
	}
	for _, s := range secrets {
		if *s != "" {
			*s = redactedPlaceholder
		}
	}

	out.Server.CORSOrigins = slices.Clone(cfg.Server.CORSOrigins)
	out.Notify.Events = slices.Clone(cfg.Notify.Events)
	return out
}
