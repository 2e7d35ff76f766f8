package settings

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	stayAuth "github.com/MrEthical07/stayAuth"
	"github.com/MrEthical07/stayAuth/httpapi"
	"github.com/MrEthical07/stayAuth/mailer"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Settings struct {
	Env        string
	Production bool
	Port       int

	Mongo MongoSettings
	Redis RedisSettings
	JWT   JWTSettings

	CookieSameSite string
	CookieSecure   bool
	ClientOrigins  []string
	TrustProxy     bool

	SMTP     SMTPSettings
	ResetURL string

	AdminEmail    string
	AdminPassword string

	KafkaBrokers    []string
	KafkaAuditTopic string

	MetricsEnabled bool
	StrictSessions bool

	// PendingBackend is "mongo" or "redis". Redis requires Redis.Addr.
	PendingBackend string
}

type MongoSettings struct {
	URI      string
	Database string
}

// RedisSettings is optional: an empty Addr runs without throttles and
// keeps captchas in memory.
type RedisSettings struct {
	Addr     string
	Password string
	DB       int
}

type JWTSettings struct {
	AccessSecret  string
	RefreshSecret string
	AccessTTL     time.Duration
	RefreshTTL    time.Duration
}

type SMTPSettings struct {
	Host string
	Port int
	User string
	Pass string
	From string
}

// env maps each key to the variables that may set it, first match wins.
var env = map[string][]string{
	"env":                 {"NODE_ENV", "APP_ENV"},
	"port":                {"PORT"},
	"mongo.uri":           {"MONGODB_URI"},
	"mongo.database":      {"MONGODB_DB"},
	"redis.addr":          {"REDIS_ADDR"},
	"redis.password":      {"REDIS_PASSWORD"},
	"redis.db":            {"REDIS_DB"},
	"jwt.access_secret":   {"ACCESS_TOKEN_SECRET"},
	"jwt.refresh_secret":  {"REFRESH_TOKEN_SECRET"},
	"jwt.access_expires":  {"ACCESS_TOKEN_EXPIRES"},
	"jwt.refresh_expires": {"REFRESH_TOKEN_EXPIRES"},
	"cookie.same_site":    {"COOKIE_SAME_SITE"},
	"cookie.secure":       {"COOKIE_SECURE"},
	"client.origins":      {"CLIENT_ORIGINS", "CLIENT_ORIGIN"},
	"trust_proxy":         {"TRUST_PROXY"},
	"smtp.host":           {"SMTP_HOST"},
	"smtp.port":           {"SMTP_PORT"},
	"smtp.user":           {"SMTP_USER"},
	"smtp.pass":           {"SMTP_PASS"},
	"smtp.from":           {"SMTP_FROM"},
	"reset_url":           {"PASSWORD_RESET_URL"},
	"admin.email":         {"ADMIN_EMAIL"},
	"admin.password":      {"ADMIN_PASSWORD"},
	"kafka.brokers":       {"KAFKA_BROKERS"},
	"kafka.audit_topic":   {"KAFKA_AUDIT_TOPIC"},
	"metrics.enabled":     {"METRICS_ENABLED"},
	"session.strict":      {"STRICT_SESSIONS"},
	"pending.backend":     {"PENDING_STORE"},
}

func defaults(v *viper.Viper) {
	v.SetDefault("env", "development")
	v.SetDefault("port", 5000)
	v.SetDefault("mongo.uri", "mongodb://localhost:27017")
	v.SetDefault("mongo.database", "stayease")
	v.SetDefault("jwt.access_expires", "15m")
	v.SetDefault("jwt.refresh_expires", "7d")
	v.SetDefault("cookie.same_site", "lax")
	v.SetDefault("client.origins", "http://localhost:5173")
	v.SetDefault("smtp.port", mailer.DefaultPort)
	v.SetDefault("kafka.audit_topic", "stayease.auth.audit")
	v.SetDefault("metrics.enabled", true)
	v.SetDefault("pending.backend", "mongo")
}

// Load reads .env from the working directory when present, then the YAML
// file at path when path is not empty, then the environment. Environment
// values override the file.
func Load(path string) (*Settings, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	v := viper.New()
	defaults(v)
	for key, names := range env {
		if err := v.BindEnv(append([]string{key}, names...)...); err != nil {
			return nil, fmt.Errorf("bind %s: %w", key, err)
		}
	}
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}
	return fromViper(v)
}

func fromViper(v *viper.Viper) (*Settings, error) {
	accessTTL, err := ParseExpiry(v.GetString("jwt.access_expires"))
	if err != nil {
		return nil, fmt.Errorf("ACCESS_TOKEN_EXPIRES: %w", err)
	}
	refreshTTL, err := ParseExpiry(v.GetString("jwt.refresh_expires"))
	if err != nil {
		return nil, fmt.Errorf("REFRESH_TOKEN_EXPIRES: %w", err)
	}

	s := &Settings{
		Env:  strings.ToLower(strings.TrimSpace(v.GetString("env"))),
		Port: v.GetInt("port"),
		Mongo: MongoSettings{
			URI:      v.GetString("mongo.uri"),
			Database: v.GetString("mongo.database"),
		},
		Redis: RedisSettings{
			Addr:     v.GetString("redis.addr"),
			Password: v.GetString("redis.password"),
			DB:       v.GetInt("redis.db"),
		},
		JWT: JWTSettings{
			AccessSecret:  v.GetString("jwt.access_secret"),
			RefreshSecret: v.GetString("jwt.refresh_secret"),
			AccessTTL:     accessTTL,
			RefreshTTL:    refreshTTL,
		},
		CookieSameSite: v.GetString("cookie.same_site"),
		CookieSecure:   v.GetBool("cookie.secure"),
		ClientOrigins:  splitList(v.GetString("client.origins")),
		TrustProxy:     v.GetBool("trust_proxy"),
		SMTP: SMTPSettings{
			Host: v.GetString("smtp.host"),
			Port: v.GetInt("smtp.port"),
			User: v.GetString("smtp.user"),
			Pass: v.GetString("smtp.pass"),
			From: v.GetString("smtp.from"),
		},
		ResetURL:        v.GetString("reset_url"),
		AdminEmail:      v.GetString("admin.email"),
		AdminPassword:   v.GetString("admin.password"),
		KafkaBrokers:    splitList(v.GetString("kafka.brokers")),
		KafkaAuditTopic: v.GetString("kafka.audit_topic"),
		MetricsEnabled:  v.GetBool("metrics.enabled"),
		StrictSessions:  v.GetBool("session.strict"),
		PendingBackend:  strings.ToLower(strings.TrimSpace(v.GetString("pending.backend"))),
	}
	s.Production = s.Env == "production"

	if s.Port <= 0 || s.Port > 65535 {
		return nil, fmt.Errorf("PORT must be in 1..65535, got %d", s.Port)
	}
	if s.Mongo.URI == "" || s.Mongo.Database == "" {
		return nil, errors.New("MONGODB_URI and MONGODB_DB must not be empty")
	}
	switch s.PendingBackend {
	case "mongo":
	case "redis":
		if s.Redis.Addr == "" {
			return nil, errors.New("PENDING_STORE=redis requires REDIS_ADDR")
		}
	default:
		return nil, fmt.Errorf("PENDING_STORE must be mongo or redis, got %q", s.PendingBackend)
	}
	return s, nil
}

// Engine maps the settings onto DefaultConfig. Unset secrets keep the
// development defaults, which Config.Validate refuses in production.
func (s *Settings) Engine() stayAuth.Config {
	cfg := stayAuth.DefaultConfig()
	if s.JWT.AccessSecret != "" {
		cfg.JWT.AccessSecret = []byte(s.JWT.AccessSecret)
	}
	if s.JWT.RefreshSecret != "" {
		cfg.JWT.RefreshSecret = []byte(s.JWT.RefreshSecret)
	}
	cfg.JWT.AccessTTL = s.JWT.AccessTTL
	cfg.JWT.RefreshTTL = s.JWT.RefreshTTL
	cfg.Security.ProductionMode = s.Production
	cfg.Metrics.Enabled = s.MetricsEnabled
	cfg.Audit.Enabled = true
	if s.StrictSessions {
		cfg.ValidationMode = stayAuth.ModeStrict
	}
	return cfg
}

// HTTP returns the route config. Logger and MetricsHandler are left for
// the caller.
func (s *Settings) HTTP() httpapi.Config {
	return httpapi.Config{
		CORSOrigins:    s.ClientOrigins,
		TrustProxy:     s.TrustProxy,
		CookieSameSite: httpapi.ParseSameSite(s.CookieSameSite),
		CookieSecure:   s.CookieSecure,
	}
}

// Mailer reports false when SMTP is not configured.
func (s *Settings) Mailer() (mailer.Config, bool) {
	if s.SMTP.Host == "" || s.SMTP.User == "" || s.SMTP.Pass == "" {
		return mailer.Config{}, false
	}
	return mailer.Config{
		Host:     s.SMTP.Host,
		Port:     s.SMTP.Port,
		User:     s.SMTP.User,
		Pass:     s.SMTP.Pass,
		From:     s.SMTP.From,
		ResetURL: s.ResetURL,
	}, true
}

// Addr is the listen address for PORT.
func (s *Settings) Addr() string {
	return fmt.Sprintf(":%d", s.Port)
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
