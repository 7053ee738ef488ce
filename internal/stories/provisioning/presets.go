package provisioning

import (
	"embed"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

//go:embed games.yaml
var presetsFS embed.FS

// GamePreset is the built-in provisioning fallback for one supported
// game. Product and variant fields override it field by field.
type GamePreset struct {
	EggID       int64             `yaml:"egg_id"`
	NestID      int64             `yaml:"nest_id"`
	DockerImage string            `yaml:"docker_image"`
	Startup     string            `yaml:"startup"`
	Environment map[string]string `yaml:"environment"`
	// VersionEnv names the environment variable a customer-selected
	// version override is written to, when the game supports one.
	VersionEnv string `yaml:"version_env"`
}

type presetsFile struct {
	Games map[string]GamePreset `yaml:"games"`
}

// LoadPresets parses and validates the embedded per-game defaults.
func LoadPresets() (map[string]GamePreset, error) {
	data, err := presetsFS.ReadFile("games.yaml")
	if err != nil {
		return nil, errors.Wrap(err, "read embedded game presets")
	}

	var file presetsFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, errors.Wrap(err, "parse game presets")
	}

	if len(file.Games) == 0 {
		return nil, errors.New("game presets file defines no games")
	}

	for name, preset := range file.Games {
		if preset.EggID <= 0 {
			return nil, errors.Errorf("game preset %q: egg_id must be positive", name)
		}
		if preset.NestID <= 0 {
			return nil, errors.Errorf("game preset %q: nest_id must be positive", name)
		}
		if preset.DockerImage == "" {
			return nil, errors.Errorf("game preset %q: docker_image is required", name)
		}
		if preset.Startup == "" {
			return nil, errors.Errorf("game preset %q: startup is required", name)
		}
	}

	return file.Games, nil
}
