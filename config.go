package verible

import (
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"maps"
	"os"

	"gopkg.in/yaml.v3"
)

const (
	DefaultTag         = "v0.0-3756-gda9a0f8c"
	DefaultURLTemplate = "https://github.com/chipsalliance/verible/releases/download/{{.Tag}}/verible-{{.Tag}}-{{.Suffix}}"
	DefaultDir         = "verible"
	DefaultConfigFile  = ".verible.yaml"
)

var defaultChecksums = map[string]string{
	PlatformLinux.Suffix: "450bc9e482aa124157647a64bb50404b",
}

// Release pins the artifact to provision.
type Release struct {
	Tag         string
	URLTemplate string
	// Dir is the installation directory, relative to the working directory
	// unless absolute.
	Dir string
	// Checksums maps a platform suffix to the MD5 of its executable.
	Checksums map[string]string
}

// DefaultRelease returns the pinned release.
func DefaultRelease() Release {
	return Release{
		Tag:         DefaultTag,
		URLTemplate: DefaultURLTemplate,
		Dir:         DefaultDir,
		Checksums:   maps.Clone(defaultChecksums),
	}
}

// Validate reports whether the release is usable.
func (r Release) Validate() error {
	if r.Tag == "" {
		return errors.New("release tag must not be empty")
	}
	if r.URLTemplate == "" {
		return errors.New("release url template must not be empty")
	}
	if r.Dir == "" {
		return errors.New("installation directory must not be empty")
	}
	for suffix, sum := range r.Checksums {
		if b, err := hex.DecodeString(sum); err != nil || len(b) != 16 {
			return fmt.Errorf("checksum for %s is not an md5 hex digest: %q", suffix, sum)
		}
	}
	return nil
}

// Config is the contents of the optional configuration file.
type Config struct {
	Release  Release
	LogLevel string
}

type fileConfig struct {
	Tag         string            `yaml:"tag"`
	URLTemplate string            `yaml:"url_template"`
	Dir         string            `yaml:"dir"`
	Checksums   map[string]string `yaml:"checksums"`
	LogLevel    string            `yaml:"log_level"`
}

// LoadConfig reads a YAML configuration file over the defaults. A missing
// file yields the defaults. Changing the tag drops the default checksums,
// since they describe a different build.
func LoadConfig(path string) (Config, error) {
	cfg := Config{Release: DefaultRelease()}

	f, err := os.Open(path)
	if errors.Is(err, fs.ErrNotExist) {
		return cfg, nil
	}
	if err != nil {
		return cfg, fmt.Errorf("failed to open config: %w", err)
	}
	defer f.Close()

	var fc fileConfig
	dec := yaml.NewDecoder(f)
	dec.KnownFields(true)
	if err := dec.Decode(&fc); err != nil && !errors.Is(err, io.EOF) {
		return cfg, fmt.Errorf("failed to parse config %s: %w", path, err)
	}

	if fc.Tag != "" && fc.Tag != cfg.Release.Tag {
		cfg.Release.Tag = fc.Tag
		cfg.Release.Checksums = map[string]string{}
	}
	if fc.URLTemplate != "" {
		cfg.Release.URLTemplate = fc.URLTemplate
	}
	if fc.Dir != "" {
		cfg.Release.Dir = fc.Dir
	}
	maps.Copy(cfg.Release.Checksums, fc.Checksums)
	cfg.LogLevel = fc.LogLevel

	if err := cfg.Release.Validate(); err != nil {
		return cfg, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return cfg, nil
}
