package runtime

import (
	"log"
	"os"

	"github.com/joho/godotenv"
)

// LoadDotEnv loads SPECLOOM_ENV_FILE (default ".env" in the working
// directory) into the process environment before ConfigFromEnv runs.
// Existing environment variables always win: a missing or unreadable file
// is not an error, since most deployments set real environment variables
// directly and never carry a .env file at all.
func LoadDotEnv() {
	path := os.Getenv("SPECLOOM_ENV_FILE")
	if path == "" {
		path = ".env"
	}
	if err := godotenv.Load(path); err != nil {
		if !os.IsNotExist(err) {
			log.Printf("WARNING: failed to load %s: %v", path, err)
		}
	}
}
