package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

type Mode string

const (
	ModeOffline Mode = "offline"
	ModeOnline  Mode = "online"
)

type Config struct {
	Mode     Mode
	HTTPAddr string
	LogMode  string // dev|prod

	DBDriver string // sqlite|postgres|memory
	DBDSN    string

	// ItemPoolFile, when set, serves items from a YAML file instead of
	// the cat_items table.
	ItemPoolFile string

	AuthSecret      string
	EnableLocalAuth bool
	AdminUser       string
	AdminPassHash   string // bcrypt
	TokenTTL        time.Duration

	CORSOriginsOnline  []string
	CORSOriginsOffline []string

	// Redis lease locks; empty RedisAddr uses in-process locks.
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	LockTTL       time.Duration

	LogRedaction  bool
	CandidateSalt string

	// Engine defaults applied to sessions that leave them unset.
	ThetaMin       float64
	ThetaMax       float64
	MaxIterations  int
	DegenerateStep float64
	FuzzyDistance  int
}

func FromEnv() Config {
	mode := Mode(os.Getenv("MODE"))
	if mode == "" {
		mode = ModeOffline
	}
	return Config{
		Mode:               mode,
		HTTPAddr:           envOr("HTTP_ADDR", ":8080"),
		LogMode:            envOr("LOG_MODE", map[Mode]string{ModeOnline: "prod"}[mode]),
		DBDriver:           envOr("DB_DRIVER", "sqlite"),
		DBDSN:              envOr("DB_DSN", ""),
		ItemPoolFile:       os.Getenv("ITEM_POOL_FILE"),
		AuthSecret:         envOr("AUTH_HMAC_SECRET", "supersecret-dev-key"),
		EnableLocalAuth:    envBool("ENABLE_LOCAL_AUTH", true),
		AdminUser:          envOr("ADMIN_USER", "admin"),
		AdminPassHash:      envOr("ADMIN_PASS_HASH", "$2y$12$pyZAiWaTfVtM7UElIRStvOC3gNbnp70nmQU4eYopLGBfCJr1DOvji"),
		TokenTTL:           envDuration("TOKEN_TTL", 2*time.Hour),
		CORSOriginsOnline:  csvOr("CORS_ORIGINS_ONLINE", "https://cat.mindengage.ai"),
		CORSOriginsOffline: csvOr("CORS_ORIGINS_OFFLINE", "http://localhost:3000,http://localhost:3010"),
		RedisAddr:          os.Getenv("REDIS_ADDR"),
		RedisPassword:      os.Getenv("REDIS_PASSWORD"),
		RedisDB:            envInt("REDIS_DB", 0),
		LockTTL:            envDuration("LOCK_TTL", 10*time.Second),
		LogRedaction:       envBool("LOG_REDACTION_ENABLED", mode == ModeOnline),
		CandidateSalt:      os.Getenv("LOG_CANDIDATE_SALT"),
		ThetaMin:           envFloat("CAT_THETA_MIN", -4),
		ThetaMax:           envFloat("CAT_THETA_MAX", 4),
		MaxIterations:      envInt("CAT_MAX_ITERATIONS", 50),
		DegenerateStep:     envFloat("CAT_DEGENERATE_STEP", 0.7),
		FuzzyDistance:      envInt("CAT_FUZZY_DISTANCE", 1),
	}
}

// CORSOrigins returns the allow-list for the current mode.
func (c Config) CORSOrigins() []string {
	if c.Mode == ModeOnline {
		return c.CORSOriginsOnline
	}
	return c.CORSOriginsOffline
}

func envOr(k, def string) string {
	v := os.Getenv(k)
	if v == "" {
		return def
	}
	return v
}
func envBool(k string, def bool) bool {
	switch os.Getenv(k) {
	case "1", "true", "TRUE", "yes", "YES":
		return true
	case "0", "false", "FALSE", "no", "NO":
		return false
	default:
		return def
	}
}
func envInt(k string, def int) int {
	n, err := strconv.Atoi(strings.TrimSpace(os.Getenv(k)))
	if err != nil {
		return def
	}
	return n
}
func envFloat(k string, def float64) float64 {
	f, err := strconv.ParseFloat(strings.TrimSpace(os.Getenv(k)), 64)
	if err != nil {
		return def
	}
	return f
}
func envDuration(k string, def time.Duration) time.Duration {
	d, err := time.ParseDuration(strings.TrimSpace(os.Getenv(k)))
	if err != nil || d <= 0 {
		return def
	}
	return d
}
func csvOr(k, def string) []string {
	v := envOr(k, def)
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if s := strings.TrimSpace(p); s != "" {
			out = append(out, s)
		}
	}
	return out
}
