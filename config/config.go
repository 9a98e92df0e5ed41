// Package config holds every URL, selector list, keyword list, budget and
// timeout the tool uses. A Config is built once per run and handed to the
// components by value.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"orderscout/page"
)

// EnvPrefix is prepended to every environment override, e.g.
// ORDERSCOUT_HARVEST_QUOTA or ORDERSCOUT_CREDENTIALS_SECRET.
const EnvPrefix = "ORDERSCOUT"

// Config is the whole run configuration.
type Config struct {
	Timeout     time.Duration `mapstructure:"timeout"`
	Site        Site          `mapstructure:"site"`
	Selectors   Selectors     `mapstructure:"selectors"`
	Extraction  Extraction    `mapstructure:"extraction"`
	Auth        Auth          `mapstructure:"auth"`
	Harvest     Harvest       `mapstructure:"harvest"`
	Browser     Browser       `mapstructure:"browser"`
	Output      Output        `mapstructure:"output"`
	Logger      Logger        `mapstructure:"logger"`
	Credentials Credentials   `mapstructure:"credentials"`
	IMAP        IMAP          `mapstructure:"imap"`
	Influx      Influx        `mapstructure:"influx"`
}

// Site describes the target store's addresses.
type Site struct {
	BaseURL       string `mapstructure:"base_url"`
	LoginURL      string `mapstructure:"login_url"`
	HistoryURL    string `mapstructure:"history_url"`
	YearFilterURL string `mapstructure:"year_filter_url"`
	// AuthPathFragments mark an address as part of the sign-in flow.
	AuthPathFragments []string `mapstructure:"auth_path_fragments"`
	// SecondFactorPathFragments mark a one-time-code page.
	SecondFactorPathFragments []string `mapstructure:"second_factor_path_fragments"`
	// HistoryURLPatterns are regular expressions matching the order history view.
	HistoryURLPatterns []string `mapstructure:"history_url_patterns"`
}

// YearURL returns the history address filtered to one year.
func (s Site) YearURL(year int) string {
	return strings.ReplaceAll(s.YearFilterURL, "{year}", strconv.Itoa(year))
}

// Selectors are ordered candidate lists of locators, tried top-down.
type Selectors struct {
	EmailField             []page.Locator `mapstructure:"email_field"`
	ContinueButton         []page.Locator `mapstructure:"continue_button"`
	PasswordField          []page.Locator `mapstructure:"password_field"`
	SignInButton           []page.Locator `mapstructure:"sign_in_button"`
	InvalidIdentifierAlert []page.Locator `mapstructure:"invalid_identifier_alert"`
	IncorrectPasswordAlert []page.Locator `mapstructure:"incorrect_password_alert"`
	Alert                  []page.Locator `mapstructure:"alert"`
	CodeField              []page.Locator `mapstructure:"code_field"`
	CodeSubmitButton       []page.Locator `mapstructure:"code_submit_button"`
	PostLoginLandmarks     []page.Locator `mapstructure:"post_login_landmarks"`
	LoginLandmarks         []page.Locator `mapstructure:"login_landmarks"`
	OrdersNav              []page.Locator `mapstructure:"orders_nav"`
	OrderPageLandmarks     []page.Locator `mapstructure:"order_page_landmarks"`
	EmptyHistory           []page.Locator `mapstructure:"empty_history"`
}

// Extraction holds the css selectors used on a settled history page.
type Extraction struct {
	OrderCards         []string `mapstructure:"order_cards"`
	HeaderValues       []string `mapstructure:"header_values"`
	DatePosition       int      `mapstructure:"date_position"`
	TotalPosition      int      `mapstructure:"total_position"`
	DeliveryBoxes      []string `mapstructure:"delivery_boxes"`
	ProductTitle       []string `mapstructure:"product_title"`
	DigitalTitle       []string `mapstructure:"digital_title"`
	ProductLinks       []string `mapstructure:"product_links"`
	PriceNodes         []string `mapstructure:"price_nodes"`
	PriceAncestorDepth int      `mapstructure:"price_ancestor_depth"`
}

// Auth holds the login state machine's budgets, waits and keyword lists.
type Auth struct {
	UsernameAttempts  int           `mapstructure:"username_attempts"`
	PasswordAttempts  int           `mapstructure:"password_attempts"`
	CodeAttempts      int           `mapstructure:"code_attempts"`
	OuterAttempts     int           `mapstructure:"outer_attempts"`
	PollInterval      time.Duration `mapstructure:"poll_interval"`
	FieldWaitRounds   int           `mapstructure:"field_wait_rounds"`
	NavigationTimeout time.Duration `mapstructure:"navigation_timeout"`

	IdentifierFailureKeywords []string `mapstructure:"identifier_failure_keywords"`
	SecondFactorAlertKeywords []string `mapstructure:"second_factor_alert_keywords"`
	SecondFactorTitleKeywords []string `mapstructure:"second_factor_title_keywords"`
	SecondFactorPhrases       []string `mapstructure:"second_factor_phrases"`
}

// Upper bounds for the harvest settings.
const (
	MaxQuota = 10
	MaxYears = 5
)

// Harvest bounds the history walk.
type Harvest struct {
	Quota          int           `mapstructure:"quota"`
	MaxYears       int           `mapstructure:"max_years"`
	PollInterval   time.Duration `mapstructure:"poll_interval"`
	NavPollRounds  int           `mapstructure:"nav_poll_rounds"`
	YearPollRounds int           `mapstructure:"year_poll_rounds"`
}

// Browser controls the Chrome process.
type Browser struct {
	Headless      bool          `mapstructure:"headless"`
	Fresh         bool          `mapstructure:"fresh"`
	UserDataDir   string        `mapstructure:"user_data_dir"`
	WindowWidth   int           `mapstructure:"window_width"`
	WindowHeight  int           `mapstructure:"window_height"`
	Args          []string      `mapstructure:"args"`
	ActionTimeout time.Duration `mapstructure:"action_timeout"`
	SnapshotDir   string        `mapstructure:"snapshot_dir"`
	Snapshots     bool          `mapstructure:"snapshots"`
}

// Output controls where harvested orders go.
type Output struct {
	File    string `mapstructure:"file"`
	Console bool   `mapstructure:"console"`
	Table   bool   `mapstructure:"table"`
}

// Logger configures zap.
type Logger struct {
	Level       string `mapstructure:"level"`
	Format      string `mapstructure:"format"`
	ServiceName string `mapstructure:"service_name"`
	AddSource   bool   `mapstructure:"add_source"`
	LogFile     string `mapstructure:"log_file"`
	MaxSize     int    `mapstructure:"max_size"`
	MaxBackups  int    `mapstructure:"max_backups"`
	MaxAge      int    `mapstructure:"max_age"`
	Compress    bool   `mapstructure:"compress"`
}

// Credentials seed an unattended run. Leave empty to be prompted.
type Credentials struct {
	Identifier string `mapstructure:"identifier"`
	Secret     string `mapstructure:"secret"`
}

// IMAP configures fetching one-time codes from a mailbox.
type IMAP struct {
	Enabled        bool          `mapstructure:"enabled"`
	Server         string        `mapstructure:"server"`
	Username       string        `mapstructure:"username"`
	Password       string        `mapstructure:"password"`
	TLS            bool          `mapstructure:"tls"`
	Subject        string        `mapstructure:"subject"`
	StartDelimiter string        `mapstructure:"start_delimiter"`
	EndDelimiter   string        `mapstructure:"end_delimiter"`
	CodePattern    string        `mapstructure:"code_pattern"`
	Wait           time.Duration `mapstructure:"wait"`
	PollInterval   time.Duration `mapstructure:"poll_interval"`
}

// Influx configures the optional InfluxDB sink.
type Influx struct {
	Enabled     bool   `mapstructure:"enabled"`
	URL         string `mapstructure:"url"`
	Token       string `mapstructure:"token"`
	Org         string `mapstructure:"org"`
	Bucket      string `mapstructure:"bucket"`
	Measurement string `mapstructure:"measurement"`
}

// Load builds a Config from defaults, an optional .env file, an optional
// YAML file and ORDERSCOUT_* environment variables, in increasing priority.
// An empty path looks for ./orderscout.yaml and carries on without it.
func Load(path string) (Config, error) {
	if err := godotenv.Load(); err != nil && !isNotExist(err) {
		return Config{}, fmt.Errorf("loading .env: %w", err)
	}

	v := viper.New()
	SetDefaults(v)
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.AddConfigPath(".")
		v.SetConfigName("orderscout")
		v.SetConfigType("yaml")
	}
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return Config{}, fmt.Errorf("reading config file: %w", err)
		}
	}
	return FromViper(v)
}

// FromViper decodes and validates a Config from v.
func FromViper(v *viper.Viper) (Config, error) {
	// Secrets have no defaults, so AutomaticEnv alone would never surface them.
	for _, key := range []string{"credentials.identifier", "credentials.secret", "imap.password", "influx.token"} {
		if err := v.BindEnv(key); err != nil {
			return Config{}, fmt.Errorf("binding %s: %w", key, err)
		}
	}

	var cfg Config
	hook := viper.DecodeHook(mapstructure.ComposeDecodeHookFunc(
		mapstructure.StringToTimeDurationHookFunc(),
		mapstructure.StringToSliceHookFunc(","),
		mapstructure.TextUnmarshallerHookFunc(),
	))
	if err := v.Unmarshal(&cfg, hook); err != nil {
		return Config{}, fmt.Errorf("decoding config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// Default returns the built-in configuration.
func Default() Config {
	v := viper.New()
	SetDefaults(v)
	cfg, err := FromViper(v)
	if err != nil {
		// The defaults are a package constant; failing here is a programming error.
		panic(fmt.Sprintf("default configuration is invalid: %v", err))
	}
	return cfg
}

// Validate checks budgets, waits and addresses.
func (c Config) Validate() error {
	var errs []error
	positive := map[string]int{
		"auth.username_attempts":   c.Auth.UsernameAttempts,
		"auth.password_attempts":   c.Auth.PasswordAttempts,
		"auth.code_attempts":       c.Auth.CodeAttempts,
		"auth.outer_attempts":      c.Auth.OuterAttempts,
		"auth.field_wait_rounds":   c.Auth.FieldWaitRounds,
		"harvest.nav_poll_rounds":  c.Harvest.NavPollRounds,
		"harvest.year_poll_rounds": c.Harvest.YearPollRounds,
	}
	for _, key := range sortedKeys(positive) {
		if positive[key] <= 0 {
			errs = append(errs, fmt.Errorf("%s must be a positive integer", key))
		}
	}
	if c.Harvest.Quota < 1 || c.Harvest.Quota > MaxQuota {
		errs = append(errs, fmt.Errorf("harvest.quota must be between 1 and %d", MaxQuota))
	}
	if c.Harvest.MaxYears < 1 || c.Harvest.MaxYears > MaxYears {
		errs = append(errs, fmt.Errorf("harvest.max_years must be between 1 and %d", MaxYears))
	}
	if c.Auth.PollInterval <= 0 || c.Harvest.PollInterval <= 0 {
		errs = append(errs, fmt.Errorf("poll intervals must be positive durations"))
	}
	if c.Auth.NavigationTimeout <= 0 {
		errs = append(errs, fmt.Errorf("auth.navigation_timeout must be a positive duration"))
	}
	if c.Extraction.DatePosition < 0 || c.Extraction.TotalPosition < 0 {
		errs = append(errs, fmt.Errorf("extraction positions must not be negative"))
	}

	urls := map[string]string{
		"site.base_url":    c.Site.BaseURL,
		"site.login_url":   c.Site.LoginURL,
		"site.history_url": c.Site.HistoryURL,
	}
	for _, key := range sortedKeys(urls) {
		raw := urls[key]
		u, err := url.Parse(raw)
		if err != nil || !u.IsAbs() {
			errs = append(errs, fmt.Errorf("%s must be an absolute URL, got %q", key, raw))
		}
	}
	if !strings.Contains(c.Site.YearFilterURL, "{year}") {
		errs = append(errs, fmt.Errorf("site.year_filter_url must contain a {year} placeholder"))
	}
	for _, p := range c.Site.HistoryURLPatterns {
		if _, err := regexp.Compile(p); err != nil {
			errs = append(errs, fmt.Errorf("site.history_url_patterns: %w", err))
		}
	}

	required := map[string][]page.Locator{
		"selectors.email_field":        c.Selectors.EmailField,
		"selectors.password_field":     c.Selectors.PasswordField,
		"selectors.sign_in_button":     c.Selectors.SignInButton,
		"selectors.code_field":         c.Selectors.CodeField,
		"selectors.code_submit_button": c.Selectors.CodeSubmitButton,
		"selectors.login_landmarks":    c.Selectors.LoginLandmarks,
	}
	for _, key := range sortedKeys(required) {
		if len(required[key]) == 0 {
			errs = append(errs, fmt.Errorf("%s needs at least one locator", key))
		}
	}
	if len(c.Extraction.OrderCards) == 0 {
		errs = append(errs, fmt.Errorf("extraction.order_cards needs at least one selector"))
	}

	if c.IMAP.Enabled {
		if c.IMAP.Server == "" || c.IMAP.Username == "" {
			errs = append(errs, fmt.Errorf("imap.server and imap.username are required when imap is enabled"))
		}
		if c.IMAP.CodePattern != "" {
			if _, err := regexp.Compile(c.IMAP.CodePattern); err != nil {
				errs = append(errs, fmt.Errorf("imap.code_pattern: %w", err))
			}
		}
	}
	if c.Influx.Enabled && (c.Influx.URL == "" || c.Influx.Bucket == "" || c.Influx.Org == "") {
		errs = append(errs, fmt.Errorf("influx.url, influx.org and influx.bucket are required when influx is enabled"))
	}
	return errors.Join(errs...)
}
