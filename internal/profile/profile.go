package profile

import (
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/pkg/errors"

	"github.com/hrygo/studychat/internal/security"
)

const (
	DefaultLLMBaseURL = "https://openrouter.ai/api/v1"
	DefaultLLMModel   = "amazon/nova-2-lite-v1:free"

	devSecret = "studychat-dev-secret"
)

// Profile is configuration to start main server.
type Profile struct {
	// Completion endpoint (OpenAI-compatible protocol)
	LLMAPIKey  string
	LLMBaseURL string
	LLMModel   string
	LLMTimeout int // seconds

	// Attribution headers sent to OpenRouter
	SiteURL  string
	SiteName string

	// Session signing secret and lifetime
	Secret          string
	SessionTTLHours int

	Mode    string
	Addr    string
	Port    int
	Data    string
	Driver  string
	DSN     string
	Version string
}

func (p *Profile) IsDev() bool {
	return p.Mode != "prod"
}

// IsOpenRouter reports whether the completion endpoint is hosted by OpenRouter.
func (p *Profile) IsOpenRouter() bool {
	u, err := url.Parse(p.LLMBaseURL)
	if err != nil {
		return false
	}
	return strings.HasSuffix(u.Hostname(), "openrouter.ai")
}

// SessionTTL returns the lifetime of an issued session.
func (p *Profile) SessionTTL() time.Duration {
	if p.SessionTTLHours <= 0 {
		return 7 * 24 * time.Hour
	}
	return time.Duration(p.SessionTTLHours) * time.Hour
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvOrDefaultInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
		slog.Warn("ignoring non-numeric environment value", "key", key, "value", value)
	}
	return defaultValue
}

// FromEnv loads configuration from environment variables.
func (p *Profile) FromEnv() {
	p.LLMAPIKey = getEnvOrDefault("STUDYCHAT_LLM_API_KEY", "")
	p.LLMBaseURL = strings.TrimRight(getEnvOrDefault("STUDYCHAT_LLM_BASE_URL", DefaultLLMBaseURL), "/")
	p.LLMModel = getEnvOrDefault("STUDYCHAT_LLM_MODEL", DefaultLLMModel)
	p.LLMTimeout = getEnvOrDefaultInt("STUDYCHAT_LLM_TIMEOUT_SECONDS", 120)

	p.SiteURL = getEnvOrDefault("STUDYCHAT_SITE_URL", "")
	p.SiteName = getEnvOrDefault("STUDYCHAT_SITE_NAME", "StudyChat")

	if p.Secret == "" {
		p.Secret = getEnvOrDefault("STUDYCHAT_SECRET", "")
	}
	p.SessionTTLHours = getEnvOrDefaultInt("STUDYCHAT_SESSION_TTL_HOURS", 168)
}

func checkDataDir(dataDir string) (string, error) {
	// Convert to absolute path if relative path is supplied.
	if !filepath.IsAbs(dataDir) {
		relativeDir := filepath.Join(filepath.Dir(os.Args[0]), dataDir)
		absDir, err := filepath.Abs(relativeDir)
		if err != nil {
			return "", err
		}
		dataDir = absDir
	}

	dataDir = strings.TrimRight(dataDir, "\\/")
	if _, err := os.Stat(dataDir); err != nil {
		return "", errors.Wrapf(err, "unable to access data folder %s", dataDir)
	}
	return dataDir, nil
}

// ValidateStore normalizes and checks the database settings only.
func (p *Profile) ValidateStore() error {
	if p.Mode != "dev" && p.Mode != "prod" {
		p.Mode = "dev"
	}

	switch p.Driver {
	case "postgres":
		if p.DSN == "" {
			return errors.New("STUDYCHAT_DSN is required for the postgres driver")
		}
	case "sqlite":
		if p.DSN == "" {
			if p.Mode == "prod" && p.Data == "" {
				p.Data = "/var/opt/studychat"
			}
			dataDir, err := checkDataDir(p.Data)
			if err != nil {
				return err
			}
			p.Data = dataDir
			p.DSN = filepath.Join(dataDir, fmt.Sprintf("studychat_%s.db", p.Mode))
		}
	default:
		return errors.Errorf("unsupported database driver %q", p.Driver)
	}
	return nil
}

// Validate normalizes the profile and reports every missing or malformed
// setting at once, so the operator can fix them in a single pass.
func (p *Profile) Validate() error {
	var result *multierror.Error
	if err := p.ValidateStore(); err != nil {
		result = multierror.Append(result, err)
	}

	if p.LLMAPIKey == "" {
		result = multierror.Append(result, errors.New("STUDYCHAT_LLM_API_KEY is required"))
	} else if p.IsOpenRouter() && !security.ValidateAPIKey(p.LLMAPIKey) {
		result = multierror.Append(result, errors.New("STUDYCHAT_LLM_API_KEY is not a valid OpenRouter key"))
	}
	if p.LLMBaseURL == "" {
		result = multierror.Append(result, errors.New("STUDYCHAT_LLM_BASE_URL is required"))
	}
	if p.LLMModel == "" {
		result = multierror.Append(result, errors.New("STUDYCHAT_LLM_MODEL is required"))
	}

	if p.Secret == "" && p.IsDev() {
		slog.Warn("STUDYCHAT_SECRET not set, using the development secret")
		p.Secret = devSecret
	}
	if len(p.Secret) < 16 {
		result = multierror.Append(result, errors.New("STUDYCHAT_SECRET must be at least 16 characters"))
	}

	return result.ErrorOrNil()
}
