package bier

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
)

const (
	CONFIG_FILENAME = "config.json"

	ENV_AGO_PORTAL_URL     = "AGO_PORTAL_URL"
	ENV_AGO_USER           = "AGO_USER"
	ENV_AGO_PASS           = "AGO_PASS"
	ENV_OBJ_STORE_ENDPOINT = "OBJ_STORE_ENDPOINT"
	ENV_OBJ_STORE_USER     = "OBJ_STORE_USER"
	ENV_OBJ_STORE_SECRET   = "OBJ_STORE_SECRET"
	ENV_OBJ_STORE_BUCKET   = "OBJ_STORE_BUCKET"
	ENV_TEAMS_WEBHOOK      = "BIER_TEAMS_WEBHOOK"
)

// Settings is everything the scripts need, resolved once at startup and
// passed down explicitly. The config file carries the portal URL and item
// IDs; credentials only ever come from the environment.
type Settings struct {
	PortalURL  string
	Username   string
	Password   string
	ItemIDs    map[string]string
	S3         S3Config
	WebhookURL string
}

// FindConfigFile looks for config.json beside the executable, then in the
// working directory.
func FindConfigFile() (string, error) {
	if exe, err := os.Executable(); err == nil {
		path := filepath.Join(filepath.Dir(exe), CONFIG_FILENAME)
		if _, err := os.Stat(path); err == nil {
			return path, nil
		}
	}
	if _, err := os.Stat(CONFIG_FILENAME); err == nil {
		return CONFIG_FILENAME, nil
	}
	return "", fmt.Errorf("config file %s: %w", CONFIG_FILENAME, ErrMissingConfig)
}

// LoadSettings builds the settings from a config file plus the environment.
// An empty path falls back to FindConfigFile; running without any config
// file is fine as long as the environment carries everything needed.
func LoadSettings(path string) (Settings, error) {
	// Load .env only for local dev
	_ = godotenv.Load()

	settings := Settings{ItemIDs: make(map[string]string)}

	if path == "" {
		path, _ = FindConfigFile()
	}
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Settings{}, fmt.Errorf("reading config file %s: %w", path, err)
		}
		// The config file is a flat map: AGO_Portal_URL plus item IDs.
		var raw map[string]string
		if err := json.Unmarshal(data, &raw); err != nil {
			return Settings{}, fmt.Errorf("parsing config file %s: %w", path, err)
		}
		for key, value := range raw {
			if key == "AGO_Portal_URL" {
				settings.PortalURL = value
				continue
			}
			settings.ItemIDs[key] = value
		}
		logrus.Info("Config file found: " + path)
	}

	if v := os.Getenv(ENV_AGO_PORTAL_URL); v != "" {
		settings.PortalURL = v
	}
	settings.Username = os.Getenv(ENV_AGO_USER)
	settings.Password = os.Getenv(ENV_AGO_PASS)
	settings.WebhookURL = os.Getenv(ENV_TEAMS_WEBHOOK)
	settings.S3 = S3Config{
		Endpoint:        os.Getenv(ENV_OBJ_STORE_ENDPOINT),
		AccessKeyID:     os.Getenv(ENV_OBJ_STORE_USER),
		SecretAccessKey: os.Getenv(ENV_OBJ_STORE_SECRET),
		Bucket:          os.Getenv(ENV_OBJ_STORE_BUCKET),
	}

	return settings, nil
}

func (s Settings) Credentials() Credentials {
	return Credentials{
		PortalURL: s.PortalURL,
		Username:  s.Username,
		Password:  s.Password,
	}
}

// ItemID returns a configured item ID by its config key, such as
// "WeatherAlerts_ItemID". A same-named environment variable (upper-cased)
// wins so one-off runs can redirect a script at a test layer.
func (s Settings) ItemID(name string) (string, error) {
	if v := os.Getenv(strings.ToUpper(name)); v != "" {
		return v, nil
	}
	if v, ok := s.ItemIDs[name]; ok && v != "" {
		return v, nil
	}
	return "", fmt.Errorf("item id %s: %w", name, ErrMissingConfig)
}
