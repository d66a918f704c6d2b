// SPDX-License-Identifier: ice License 1.0

package config

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/joho/godotenv"
	"github.com/pkg/errors"
	"github.com/spf13/viper"
)

//nolint:gochecknoinits // Because we load the configs once, for the whole runtime.
func init() {
	loadFirstApplicationConfigFile()
	dotEnvPath := `.env`
	for i := 0; i < 5; i++ {
		if err := godotenv.Load(dotEnvPath); err == nil {
			break
		}
		dotEnvPath = fmt.Sprintf(`../%v`, dotEnvPath)
	}
}

func MustLoadFromKey(key string, cfg any) {
	if err := viper.UnmarshalKey(key, cfg); err != nil {
		log.Panic(errors.Wrapf(err, "failed to load config by key %q", key))
	}
}

// EnvValue resolves `suffix` from the environment, trying the application
// specific `<APPLICATION_YAML_KEY>_<SUFFIX>` variable first, then the bare
// `<SUFFIX>` one. It returns "" if neither is set.
func EnvValue(applicationYAMLKey, suffix string) string {
	module := strings.ToUpper(strings.ReplaceAll(strings.ReplaceAll(applicationYAMLKey, "-", "_"), "/", "_"))
	if value := os.Getenv(module + "_" + suffix); value != "" {
		return value
	}

	return os.Getenv(suffix)
}

func loadFirstApplicationConfigFile() {
	for _, f := range findAllApplicationConfigFiles() {
		viper.SetConfigFile(f)
		if err := viper.ReadInConfig(); err == nil {
			return
		} else if !errors.Is(err, os.ErrNotExist) {
			log.Panic(err)
		}
	}

	log.Panic(errors.New("could not find any application.yaml files"))
}

func findAllApplicationConfigFiles() []string {
	var dirs []string

	if p, err := os.Getwd(); err == nil {
		dirs = append(dirs, p)
	}
	if p, err := os.Executable(); err == nil {
		dirs = append(dirs, filepath.Dir(p))
	}
	//nolint:dogsled // Because those 3 blank identifiers are useless.
	_, callerFile, _, _ := runtime.Caller(0)
	dirs = append(dirs, filepath.Join(filepath.Dir(callerFile), ".."), filepath.Join(filepath.Dir(callerFile), "..", ".."))

	var files []string
	for _, dir := range dirs {
		for _, pattern := range []string{filepath.Join(dir, ".testdata", "application.yaml"), filepath.Join(dir, "application.yaml")} {
			if f, err := filepath.Glob(pattern); err != nil {
				log.Println(errors.Wrapf(err, "glob failed for [%v]", pattern))
			} else {
				files = append(files, f...)
			}
		}
	}

	return files
}
