package config

import (
	"os"
	"path/filepath"

	kdl "github.com/sblinch/kdl-go"
)

const (
	ProjectConfigFile = ".gitlab-mcp.kdl"
	UserConfigDir     = "gitlab-mcp"
	UserConfigFile    = "config.kdl"
)

// KDLConfig is the raw KDL structure for unmarshaling.
type KDLConfig struct {
	AuthServiceURL string      `kdl:"auth-service-url"`
	QRCodeURL      string      `kdl:"qrcode-url"`
	CallbackURL    string      `kdl:"callback-url"`
	Listen         string      `kdl:"listen"`
	Browser        string      `kdl:"browser"`
	EditorScheme   string      `kdl:"editor-scheme"`
	Storage        KDLStorage  `kdl:"storage"`
	Timeouts       KDLTimeouts `kdl:"timeouts"`
}

// KDLStorage is the storage block.
type KDLStorage struct {
	Mode    string `kdl:"mode"`
	Account string `kdl:"account"`
	Service string `kdl:"service"`
	Path    string `kdl:"path"`
}

// KDLTimeouts is the timeouts block. Values use Go duration syntax.
type KDLTimeouts struct {
	Validate     string `kdl:"validate"`
	Request      string `kdl:"request"`
	Start        string `kdl:"start"`
	PollInterval string `kdl:"poll-interval"`
	Auth         string `kdl:"auth"`
	SessionTTL   string `kdl:"session-ttl"`
	Sweep        string `kdl:"sweep"`
}

// UserConfigPath returns the path to the user config file.
func UserConfigPath() string {
	configDir := os.Getenv("XDG_CONFIG_HOME")
	if configDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return ""
		}
		configDir = filepath.Join(home, ".config")
	}
	return filepath.Join(configDir, UserConfigDir, UserConfigFile)
}

// ProjectConfigPath returns the path to the project config file.
func ProjectConfigPath(dir string) string {
	return filepath.Join(dir, ProjectConfigFile)
}

// ConfigPaths returns all relevant config file paths.
func ConfigPaths(projectDir string) map[string]string {
	return map[string]string{
		"user":    UserConfigPath(),
		"project": ProjectConfigPath(projectDir),
	}
}

// LoadUserConfig loads the user config layer.
func LoadUserConfig() (Layer, error) {
	path := UserConfigPath()
	if path == "" {
		return Layer{}, nil
	}
	return loadConfigFile(path)
}

// LoadProjectConfig loads the project config layer from dir.
func LoadProjectConfig(dir string) (Layer, error) {
	return loadConfigFile(ProjectConfigPath(dir))
}

func loadConfigFile(path string) (Layer, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return Layer{}, nil
	}
	if err != nil {
		return Layer{}, err
	}
	return ParseKDLConfig(string(data))
}

// ParseKDLConfig parses KDL configuration data into a layer.
func ParseKDLConfig(data string) (Layer, error) {
	var k KDLConfig
	if err := kdl.Unmarshal([]byte(data), &k); err != nil {
		return Layer{}, err
	}

	return Layer{
		AuthServiceURL:  k.AuthServiceURL,
		QRCodeURL:       k.QRCodeURL,
		CallbackURL:     k.CallbackURL,
		Listen:          k.Listen,
		Browser:         k.Browser,
		EditorScheme:    k.EditorScheme,
		StorageMode:     k.Storage.Mode,
		StorageAccount:  k.Storage.Account,
		StorageService:  k.Storage.Service,
		StoragePath:     k.Storage.Path,
		ValidateTimeout: k.Timeouts.Validate,
		RequestTimeout:  k.Timeouts.Request,
		StartTimeout:    k.Timeouts.Start,
		PollInterval:    k.Timeouts.PollInterval,
		AuthTimeout:     k.Timeouts.Auth,
		SessionTTL:      k.Timeouts.SessionTTL,
		SweepInterval:   k.Timeouts.Sweep,
	}, nil
}
