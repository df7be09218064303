package core

import (
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type (
	Config struct {
		Debug           bool
		TestMode        bool
		Env             string
		Build           string
		AppName         string
		SecretKey       string
		FrontendBaseURL string

		DefaultFromEmail string
		SendgridAPIKey   string
		RollbarToken     string

		Server   ServerConfig
		Database DatabaseConfig
		Storage  StorageConfig
		Reminder ReminderConfig
	}

	ServerConfig struct {
		Addr               string
		ShutdownTimeout    time.Duration
		JWTExpirationDelta time.Duration
	}

	DatabaseConfig struct {
		Dir string
	}

	StorageConfig struct {
		// Quota is the maximum total size (in bytes) of all persisted collections.
		// Writes beyond it fail with database.QuotaExceededError.
		Quota int64
	}

	ReminderConfig struct {
		// Interval must stay at or below half the narrowest reminder window
		// (30min for 1-on-1 sessions) or reminders may be skipped entirely.
		Interval    time.Duration
		SessionLead time.Duration
		WebinarLead time.Duration
	}
)

func NewConfig() *Config {
	conf := viper.New()
	conf.SetTypeByDefaultValue(true)

	// defaults
	conf.SetDefault("debug", true)
	conf.SetDefault("build", "dev")
	conf.SetDefault("appName", "Darasa")
	conf.SetDefault("secretKey", "x2m#ue)d1rz&s0qh!p4(c7@gw_5vyk8t=jb6fn9a+l3o$i%c")
	conf.SetDefault("frontendBaseURL", "http://localhost:3000")
	conf.SetDefault("defaultFromEmail", "noreply@localhost")
	conf.SetDefault("serverAddr", ":8000")
	conf.SetDefault("serverShutdownTimeout", 5*time.Second)
	conf.SetDefault("jwtExpirationDelta", 7*24*time.Hour)
	conf.SetDefault("databaseDir", filepath.Join(Getwd(), "data"))
	conf.SetDefault("storageQuota", int64(5<<20)) // mirrors a browser's ~5MB localStorage budget
	conf.SetDefault("reminderInterval", time.Minute)
	conf.SetDefault("sessionReminderLead", 30*time.Minute)
	conf.SetDefault("webinarReminderLead", time.Hour)

	env := strings.ToUpper(os.Getenv("ENV")) // DEV (local; default), TEST, QA, PROD
	if env == "" {
		env = "DEV"
	}
	conf.SetEnvPrefix(env)

	// load .env if it exists (ignore if it does not)
	dotEnvPath := filepath.Join(Getwd(), "config", ".env."+strings.ToLower(env))
	if _, err := os.Stat(dotEnvPath); err == nil {
		if err = godotenv.Load(dotEnvPath); err != nil {
			log.Fatalf("config.godotenv(%s): %v", dotEnvPath, err)
		}
	} else if !os.IsNotExist(err) {
		log.Fatalf("config.os.Stat(%s): %v", dotEnvPath, err)
	}
	conf.AutomaticEnv()

	return &Config{
		Debug:            conf.GetBool("debug"),
		TestMode:         env == "TEST",
		Env:              env,
		Build:            conf.GetString("build"),
		AppName:          conf.GetString("appName"),
		SecretKey:        conf.GetString("secretKey"),
		FrontendBaseURL:  conf.GetString("frontendBaseURL"),
		DefaultFromEmail: conf.GetString("defaultFromEmail"),
		SendgridAPIKey:   conf.GetString("sendgridApiKey"),
		RollbarToken:     conf.GetString("rollbarToken"),
		Server: ServerConfig{
			Addr:               conf.GetString("serverAddr"),
			ShutdownTimeout:    conf.GetDuration("serverShutdownTimeout"),
			JWTExpirationDelta: conf.GetDuration("jwtExpirationDelta"),
		},
		Database: DatabaseConfig{
			Dir: conf.GetString("databaseDir"),
		},
		Storage: StorageConfig{
			Quota: conf.GetInt64("storageQuota"),
		},
		Reminder: ReminderConfig{
			Interval:    conf.GetDuration("reminderInterval"),
			SessionLead: conf.GetDuration("sessionReminderLead"),
			WebinarLead: conf.GetDuration("webinarReminderLead"),
		},
	}
}
