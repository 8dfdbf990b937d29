package config

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
)

// AppEnvVar selects which .env.<env> files are read. Defaults to "development".
const AppEnvVar = "APP_ENV"

// LoadDotEnv reads .env files from dir into the process environment.
// godotenv never overrides a variable that is already set, so the first file
// to define a key wins and the real environment beats every file. Order, most
// specific first:
//
//	.env.<env>.local  .env.local  .env.<env>  .env
//
// Missing files are skipped. It returns the files that were read.
func LoadDotEnv(dir string) ([]string, error) {
	env := os.Getenv(AppEnvVar)
	if env == "" {
		env = "development"
	}

	candidates := []string{
		".env." + env + ".local",
		".env.local",
		".env." + env,
		".env",
	}

	var loaded []string
	for _, name := range candidates {
		path := filepath.Join(dir, name)
		if err := godotenv.Load(path); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return loaded, err
		}
		loaded = append(loaded, path)
	}
	return loaded, nil
}
