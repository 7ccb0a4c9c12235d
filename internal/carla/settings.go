package carla

import (
	"bytes"
	"fmt"
	"strconv"

	"github.com/go-ini/ini"
)

func init() {
	// the server expects key=value without padding
	ini.PrettyFormat = false
	ini.PrettyEqual = false
}

// Settings are the episode settings sent with RequestNewEpisode.
// Nil pointers are omitted from the INI text.
type Settings struct {
	SynchronousMode         bool
	SendNonPlayerAgentsInfo bool

	QualityLevel string

	PlayerVehicle             string
	NumberOfVehicles          int
	NumberOfPedestrians       int
	WeatherID                 int
	SeedVehicles              *int
	SeedPedestrians           *int
	DisableTwoWheeledVehicles bool
}

// DefaultSettings returns the settings the stock Python client sends when
// nothing is customised.
func DefaultSettings() Settings {
	return Settings{
		SynchronousMode:         true,
		SendNonPlayerAgentsInfo: false,
		QualityLevel:            "Epic",
		NumberOfVehicles:        20,
		NumberOfPedestrians:     30,
		WeatherID:               1,
	}
}

// pyBool matches the capitalisation the server's INI reader was written against.
func pyBool(v bool) string {
	if v {
		return "True"
	}
	return "False"
}

// INI renders the settings as the ini_file of RequestNewEpisode.
func (s Settings) INI() (string, error) {
	cfg := ini.Empty()

	sections := []struct {
		name string
		keys []iniKey
	}{
		{"CARLA/Server", []iniKey{
			{"SynchronousMode", pyBool(s.SynchronousMode)},
			{"SendNonPlayerAgentsInfo", pyBool(s.SendNonPlayerAgentsInfo)},
		}},
		{"CARLA/QualitySettings", []iniKey{
			{"QualityLevel", s.QualityLevel},
		}},
		{"CARLA/LevelSettings", levelKeys(s)},
		{"CARLA/Sensor", []iniKey{
			{"Sensors", ""},
		}},
	}

	for _, sec := range sections {
		section, err := cfg.NewSection(sec.name)
		if err != nil {
			return "", fmt.Errorf("ini section %s: %w", sec.name, err)
		}
		for _, k := range sec.keys {
			if _, err := section.NewKey(k.key, k.value); err != nil {
				return "", fmt.Errorf("ini key %s.%s: %w", sec.name, k.key, err)
			}
		}
	}

	var buf bytes.Buffer
	if _, err := cfg.WriteTo(&buf); err != nil {
		return "", fmt.Errorf("render settings: %w", err)
	}
	return buf.String(), nil
}

type iniKey struct{ key, value string }

func levelKeys(s Settings) []iniKey {
	var keys []iniKey
	if s.PlayerVehicle != "" {
		keys = append(keys, iniKey{"PlayerVehicle", s.PlayerVehicle})
	}
	keys = append(keys,
		iniKey{"NumberOfVehicles", strconv.Itoa(s.NumberOfVehicles)},
		iniKey{"NumberOfPedestrians", strconv.Itoa(s.NumberOfPedestrians)},
		iniKey{"WeatherId", strconv.Itoa(s.WeatherID)},
	)
	if s.SeedVehicles != nil {
		keys = append(keys, iniKey{"SeedVehicles", strconv.Itoa(*s.SeedVehicles)})
	}
	if s.SeedPedestrians != nil {
		keys = append(keys, iniKey{"SeedPedestrians", strconv.Itoa(*s.SeedPedestrians)})
	}
	return append(keys, iniKey{"DisableTwoWheeledVehicles", pyBool(s.DisableTwoWheeledVehicles)})
}
