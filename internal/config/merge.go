package config

import "os"

// Environment variables that override file configuration.
const (
	EnvAuthServiceURL = "GITLAB_MCP_AUTH_SERVICE_URL"
	EnvQRCodeURL      = "GITLAB_MCP_QRCODE_URL"
	EnvCallbackURL    = "GITLAB_MCP_CALLBACK_URL"
	EnvListen         = "GITLAB_MCP_LISTEN"
	EnvBrowser        = "GITLAB_MCP_BROWSER"
	EnvStorageMode    = "GITLAB_MCP_STORAGE_MODE"
)

// Merge overlays layers in order. A later non-empty field wins.
func Merge(layers ...Layer) Layer {
	var m Layer
	for _, l := range layers {
		set(&m.AuthServiceURL, l.AuthServiceURL)
		set(&m.QRCodeURL, l.QRCodeURL)
		set(&m.CallbackURL, l.CallbackURL)
		set(&m.Listen, l.Listen)
		set(&m.Browser, l.Browser)
		set(&m.EditorScheme, l.EditorScheme)
		set(&m.StorageMode, l.StorageMode)
		set(&m.StorageAccount, l.StorageAccount)
		set(&m.StorageService, l.StorageService)
		set(&m.StoragePath, l.StoragePath)
		set(&m.ValidateTimeout, l.ValidateTimeout)
		set(&m.RequestTimeout, l.RequestTimeout)
		set(&m.StartTimeout, l.StartTimeout)
		set(&m.PollInterval, l.PollInterval)
		set(&m.AuthTimeout, l.AuthTimeout)
		set(&m.SessionTTL, l.SessionTTL)
		set(&m.SweepInterval, l.SweepInterval)
	}
	return m
}

func set(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

// EnvLayer reads the override layer from the environment.
func EnvLayer() Layer {
	return Layer{
		AuthServiceURL: os.Getenv(EnvAuthServiceURL),
		QRCodeURL:      os.Getenv(EnvQRCodeURL),
		CallbackURL:    os.Getenv(EnvCallbackURL),
		Listen:         os.Getenv(EnvListen),
		Browser:        os.Getenv(EnvBrowser),
		StorageMode:    os.Getenv(EnvStorageMode),
	}
}

// Load resolves user config, project config and environment, in that order
// of increasing precedence.
func Load(projectDir string) (*Config, error) {
	user, err := LoadUserConfig()
	if err != nil {
		return nil, err
	}

	project, err := LoadProjectConfig(projectDir)
	if err != nil {
		return nil, err
	}

	return Resolve(Merge(user, project, EnvLayer()))
}
