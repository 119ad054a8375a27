package infra

import (
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
)

// Config is the daemon's ambient configuration, read from the environment
// with an optional .env file.
type Config struct {
	// ListenAddr is the hub's bind address. Loopback only by default.
	ListenAddr string
	// DataDir holds the settings database, key file and status file.
	DataDir string
	// AuthToken guards the hub's upgrade endpoint. Empty disables auth.
	AuthToken string
	// LogPath is the daemon log file.
	LogPath string
}

const defaultListenAddr = "127.0.0.1:8741"

// LoadConfig reads configuration from the environment. A .env file in the
// working directory is loaded first, if present.
func LoadConfig() Config {
	_ = godotenv.Load()

	dataDir := os.Getenv("CLIPSENTRY_DATA_DIR")
	if dataDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			home = os.TempDir()
		}
		dataDir = filepath.Join(home, ".clipsentry")
	}

	listen := os.Getenv("CLIPSENTRY_LISTEN_ADDR")
	if listen == "" {
		listen = defaultListenAddr
	}

	logPath := os.Getenv("CLIPSENTRY_LOG_FILE")
	if logPath == "" {
		logPath = filepath.Join(dataDir, "clipsentry.log")
	}

	return Config{
		ListenAddr: listen,
		DataDir:    dataDir,
		AuthToken:  os.Getenv("CLIPSENTRY_AUTH_TOKEN"),
		LogPath:    logPath,
	}
}

// WSURL returns the hub's WebSocket endpoint for this config.
func (c Config) WSURL() string {
	return "ws://" + c.ListenAddr + "/ws"
}
