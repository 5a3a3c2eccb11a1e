package config

import "net/url"

// RedactedConfig returns a copy of cfg with every credential replaced by
// "***", for logging the active configuration.
func RedactedConfig(cfg *Config) Config {
	out := *cfg

	redact(&out.Wallet.PrivateKey)
	redact(&out.Wallet.KeyPassword)
	redact(&out.Weather.OpenWeatherAPIKey)
	redact(&out.Weather.WeatherAPIKey)
	redact(&out.Arbiter.APIKey)
	redact(&out.Postgres.DSN)
	redact(&out.Postgres.Password)
	redact(&out.Redis.Password)
	redactURLPassword(&out.Redis.Addr)
	redact(&out.S3.AccessKey)
	redact(&out.S3.SecretKey)
	redact(&out.Server.APIKey)
	redact(&out.Notify.TelegramToken)
	redact(&out.Notify.DiscordWebhookURL)

	if cfg.Notify.Events != nil {
		out.Notify.Events = append([]string(nil), cfg.Notify.Events...)
	}
	if cfg.Server.CORSOrigins != nil {
		out.Server.CORSOrigins = append([]string(nil), cfg.Server.CORSOrigins...)
	}
	return out
}

const redacted = "***"

func redact(s *string) {
	if *s != "" {
		*s = redacted
	}
}

// redactURLPassword masks the password of a URL-form address and leaves
// host:port addresses alone.
func redactURLPassword(s *string) {
	u, err := url.Parse(*s)
	if err != nil || u.User == nil {
		return
	}
	if _, ok := u.User.Password(); ok {
		u.User = url.UserPassword(u.User.Username(), redacted)
		*s = u.String()
	}
}
