package vecstream

import (
	"os"
	"path/filepath"
	"runtime"
)

// dbPathEnvVar is the environment variable that overrides the default store
// root, per §6.
const dbPathEnvVar = "VECSTREAM_DB_PATH"

// DefaultDBPath returns the default store root: VECSTREAM_DB_PATH if set,
// otherwise %APPDATA%/VecStream/store on Windows and ~/.vecstream/store
// elsewhere.
func DefaultDBPath() string {
	if p := os.Getenv(dbPathEnvVar); p != "" {
		return p
	}

	if runtime.GOOS == "windows" {
		if appData := os.Getenv("APPDATA"); appData != "" {
			return filepath.Join(appData, "VecStream", "store")
		}
	}

	home, err := os.UserHomeDir()
	if err != nil {
		home = "."
	}
	return filepath.Join(home, ".vecstream", "store")
}
