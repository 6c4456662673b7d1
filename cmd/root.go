package cmd

import (
	"errors"
	"log"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/pitchpilot/outreach/internal/filtering"
)

const (
	app = "outreach"
)

type Config struct {
	OwnerID  string          `mapstructure:"owner-id"`
	Store    *StoreConfig    `mapstructure:"store"`
	AI       *AIConfig       `mapstructure:"ai"`
	Mail     *MailConfig     `mapstructure:"mail"`
	Replies  *RepliesConfig  `mapstructure:"replies"`
	FollowUp *FollowUpConfig `mapstructure:"followup"`
}

type StoreConfig struct {
	// Driver is postgres (default) or memory. The memory store lives for
	// one process only, so it suits serve in development and nothing else.
	Driver          string `mapstructure:"driver"`
	DatabaseURL     string `mapstructure:"database-url"`
	DatabaseURLFile string `mapstructure:"database-url-file"`
	AutoMigrate     bool   `mapstructure:"auto-migrate"`
}

type AIConfig struct {
	Provider     string        `mapstructure:"provider"`
	Timeout      time.Duration `mapstructure:"timeout"`
	AttemptDelay time.Duration `mapstructure:"attempt-delay"`
	Gemini       *GeminiConfig `mapstructure:"gemini"`
}

type GeminiConfig struct {
	APIKey       string `mapstructure:"api-key"`
	APIKeyFile   string `mapstructure:"api-key-file"`
	Model        string `mapstructure:"model"`
	MaxLogLength int    `mapstructure:"max-log-length"`
}

type MailConfig struct {
	// Transport is gmail or smtp.
	Transport string        `mapstructure:"transport"`
	Timeout   time.Duration `mapstructure:"timeout"`
	// Resume is attached to interactive sends unless overridden.
	Resume string       `mapstructure:"resume"`
	Gmail  *GmailConfig `mapstructure:"gmail"`
	SMTP   *SMTPConfig  `mapstructure:"smtp"`
}

type GmailConfig struct {
	ClientID         string `mapstructure:"client-id"`
	ClientSecret     string `mapstructure:"client-secret"`
	ClientSecretFile string `mapstructure:"client-secret-file"`
	RefreshToken     string `mapstructure:"refresh-token"`
	RefreshTokenFile string `mapstructure:"refresh-token-file"`
	Sender           string `mapstructure:"sender"`
	RedirectURL      string `mapstructure:"redirect-url"`
}

type SMTPConfig struct {
	Host         string `mapstructure:"host"`
	Port         int    `mapstructure:"port"`
	Username     string `mapstructure:"username"`
	Password     string `mapstructure:"password"`
	PasswordFile string `mapstructure:"password-file"`
	// From overrides mail.gmail.sender as the envelope sender.
	From string `mapstructure:"from"`
}

type RepliesConfig struct {
	Interval  time.Duration             `mapstructure:"interval"`
	Query     string                    `mapstructure:"query"`
	Heuristic filtering.HeuristicConfig `mapstructure:"heuristic"`
	// Disable lists filter steps to switch off, e.g. already_replied.
	Disable []string `mapstructure:"disable"`
}

type FollowUpConfig struct {
	Interval    time.Duration `mapstructure:"interval"`
	Window      time.Duration `mapstructure:"window"`
	MaxAttempts int           `mapstructure:"max-attempts"`
}

var (
	// Used for flags.
	cfgFile string

	rootCmd = &cobra.Command{
		Use:   app,
		Short: "outreach drafts, sends and tracks recruiter outreach emails",
	}
)

// Execute executes the root command.
func Execute() error {
	return rootCmd.Execute()
}

// envBindings maps config keys to the well-known variables used by
// deployments. Everything else is reachable as OUTREACH_<KEY>.
var envBindings = map[string]string{
	"ai.gemini.api-key":        "GEMINI_API_KEY",
	"mail.gmail.client-id":     "GMAIL_CLIENT_ID",
	"mail.gmail.client-secret": "GMAIL_CLIENT_SECRET",
	"mail.gmail.refresh-token": "GMAIL_REFRESH_TOKEN",
	"mail.gmail.sender":        "GMAIL_SENDER",
	"store.database-url":       "DATABASE_URL",
}

var envKeyReplacer = strings.NewReplacer(".", "_", "-", "_")

func init() {
	setDefaults(viper.GetViper())

	viper.SetEnvPrefix(app)
	viper.SetEnvKeyReplacer(envKeyReplacer)
	viper.AutomaticEnv()

	// Explicit bindings replace the prefixed name, so keep it as the first choice.
	for key, env := range envBindings {
		prefixed := strings.ToUpper(app) + "_" + envKeyReplacer.Replace(strings.ToUpper(key))
		if err := viper.BindEnv(key, prefixed, env); err != nil {
			log.Fatalf("binding %s environment variable: %v", env, err)
		}
	}

	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "a config file (default is outreach.yaml in current directory)")
	rootCmd.PersistentFlags().BoolP("debug", "d", false, "verbose/debug output")
	rootCmd.PersistentFlags().BoolP("json", "j", false, "json format for logging")
	rootCmd.PersistentFlags().String("owner", "", "owner id the command acts for (overrides owner-id)")

	viper.BindPFlag("debug", rootCmd.PersistentFlags().Lookup("debug"))
	viper.BindPFlag("json", rootCmd.PersistentFlags().Lookup("json"))
	viper.BindPFlag("owner-id", rootCmd.PersistentFlags().Lookup("owner"))
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("owner-id", "default")

	v.SetDefault("store.driver", "postgres")
	v.SetDefault("store.database-url", "")
	v.SetDefault("store.database-url-file", "")
	v.SetDefault("store.auto-migrate", true)

	v.SetDefault("ai.provider", "gemini")
	v.SetDefault("ai.timeout", 30*time.Second)
	v.SetDefault("ai.attempt-delay", time.Duration(0))
	v.SetDefault("ai.gemini.api-key", "")
	v.SetDefault("ai.gemini.api-key-file", "")
	v.SetDefault("ai.gemini.model", "gemini-2.5-flash")
	v.SetDefault("ai.gemini.max-log-length", 200)

	v.SetDefault("mail.transport", "gmail")
	v.SetDefault("mail.timeout", 20*time.Second)
	v.SetDefault("mail.resume", "")
	v.SetDefault("mail.gmail.client-id", "")
	v.SetDefault("mail.gmail.client-secret", "")
	v.SetDefault("mail.gmail.client-secret-file", "")
	v.SetDefault("mail.gmail.refresh-token", "")
	v.SetDefault("mail.gmail.refresh-token-file", "")
	v.SetDefault("mail.gmail.sender", "")
	v.SetDefault("mail.gmail.redirect-url", "")
	v.SetDefault("mail.smtp.host", "")
	v.SetDefault("mail.smtp.port", 587)
	v.SetDefault("mail.smtp.username", "")
	v.SetDefault("mail.smtp.password", "")
	v.SetDefault("mail.smtp.password-file", "")
	v.SetDefault("mail.smtp.from", "")

	v.SetDefault("replies.interval", 15*time.Minute)
	v.SetDefault("replies.query", "")
	v.SetDefault("replies.heuristic.subject-prefix", true)
	v.SetDefault("replies.heuristic.thread-id", true)
	v.SetDefault("replies.disable", []string{})

	v.SetDefault("followup.interval", 5*time.Minute)
	v.SetDefault("followup.window", 5*time.Minute)
	v.SetDefault("followup.max-attempts", 5)
}

func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.AddConfigPath(".")
		viper.SetConfigName(app)
		viper.SetConfigType("yaml")
	}

	// Defaults and environment are enough to run; an explicit config that
	// can't be read is not.
	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if cfgFile != "" || !errors.As(err, &notFound) {
			log.Fatal(err)
		}
	}
}

func getConfig() (*Config, error) {
	return decodeConfig(viper.GetViper())
}

func decodeConfig(v *viper.Viper) (*Config, error) {
	var config *Config
	err := v.Unmarshal(&config)
	if err != nil {
		return config, err
	}

	return config, nil
}
