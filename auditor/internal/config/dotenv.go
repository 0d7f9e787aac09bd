package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/joho/godotenv"
)

// SkipDotenvEnv disables .env loading when set to any non-empty value.
const SkipDotenvEnv = "AUDITOR_SKIP_DOTENV"

// LoadDotenv loads KEY=VALUE pairs from path into the process environment.
// Variables that are already set are left untouched. A missing file is not
// an error.
func LoadDotenv(path string) error {
	if os.Getenv(SkipDotenvEnv) != "" {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("config: load %s: %w", path, err)
	}
	return nil
}
