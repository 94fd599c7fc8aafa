package config

import (
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// RequirePathReservation controls whether a signal refuses to show a
// proceed aspect unless its protected route is actually reserved.
type RequirePathReservation string

const (
	RequirePathReservationAuto RequirePathReservation = "auto"
	RequirePathReservationYes  RequirePathReservation = "yes"
	RequirePathReservationNo   RequirePathReservation = "no"
)

// InterfaceConfig is one hardware interface's connection settings.
type InterfaceConfig struct {
	ID       string `mapstructure:"id" yaml:"id" json:"id"`
	Protocol string `mapstructure:"protocol" yaml:"protocol" json:"protocol"` // "dinamo" | "cbusascii" | "simulation"
	Type     string `mapstructure:"type" yaml:"type" json:"type"`             // "serial" | "tcp" | "udp" | "simulation"
	Address  string `mapstructure:"address" yaml:"address" json:"address"`    // host:port, or serial device path
	BaudRate int    `mapstructure:"baud_rate" yaml:"baud_rate" json:"baud_rate"`
}

// ScriptConfig governs the embedded scripting bridge.
type ScriptConfig struct {
	Enabled  bool   `mapstructure:"enabled" yaml:"enabled"`
	Dir      string `mapstructure:"dir" yaml:"dir"`
	VarsPath string `mapstructure:"vars_path" yaml:"vars_path"`
}

// SimulatorConfig governs the kinematic layout simulator.
type SimulatorConfig struct {
	Enabled      bool   `mapstructure:"enabled" yaml:"enabled"`
	ListenAddr   string `mapstructure:"listen_addr" yaml:"listen_addr"`
	TickMillis   int    `mapstructure:"tick_millis" yaml:"tick_millis"`
}

// Config holds the world's runtime configuration values.
type Config struct {
	Port      string
	DBPath    string
	Env       string
	BuildTime string
	StartTime time.Time

	WorldName string

	// RequireReservation is the world-wide default for whether a signal
	// demands its protected path be reserved before it may clear;
	// individual signals may override it per-instance.
	RequireReservation RequirePathReservation

	// CorrectOutputPosWhenLocked controls whether the anti-regression
	// correction loop is allowed to re-send a device's command output
	// while interlocking still holds it reserved; when false, a mismatch
	// on a reserved device escalates at once. Free devices are never
	// corrected either way.
	CorrectOutputPosWhenLocked bool

	// ExtOutputChangeAction names the escalation response when a
	// device's feedback never converges after every correction retry.
	ExtOutputChangeAction string

	Interfaces []InterfaceConfig
	Script     ScriptConfig
	Simulator  SimulatorConfig
}

// Load loads configuration from config file and environment variables
// using Viper. Optionally accepts a config file path as first argument.
func Load(configPath ...string) Config {
	viper.SetDefault("port", "8080")
	viper.SetDefault("db_path", "data/world.db")
	viper.SetDefault("app_env", "development")
	viper.SetDefault("world_name", "Default World")
	viper.SetDefault("require_reservation", string(RequirePathReservationAuto))
	viper.SetDefault("correct_output_pos_when_locked", true)
	viper.SetDefault("ext_output_change_action", "do_nothing")

	viper.SetDefault("script.enabled", true)
	viper.SetDefault("script.dir", "data/scripts")
	viper.SetDefault("script.vars_path", "data/script_vars.db")

	viper.SetDefault("simulator.enabled", false)
	viper.SetDefault("simulator.listen_addr", ":5741")
	viper.SetDefault("simulator.tick_millis", 100)

	if len(configPath) > 0 && configPath[0] != "" {
		viper.SetConfigFile(configPath[0])
	} else {
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")
		viper.AddConfigPath("data")
		viper.AddConfigPath("$HOME/.trainmaster")
		viper.AddConfigPath("/etc/trainmaster")
	}

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			log.Printf("No config file found, using defaults and environment variables")
		} else {
			log.Printf("Error reading config file: %v", err)
		}
	} else {
		log.Printf("Using config file: %s", viper.ConfigFileUsed())
	}

	viper.SetEnvPrefix("")
	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	cfg := Config{
		Port:                       viper.GetString("port"),
		DBPath:                     viper.GetString("db_path"),
		Env:                        viper.GetString("app_env"),
		BuildTime:                  viper.GetString("build_time"),
		StartTime:                  time.Now(),
		WorldName:                  viper.GetString("world_name"),
		RequireReservation:         RequirePathReservation(viper.GetString("require_reservation")),
		CorrectOutputPosWhenLocked: viper.GetBool("correct_output_pos_when_locked"),
		ExtOutputChangeAction:      viper.GetString("ext_output_change_action"),
	}

	if err := viper.UnmarshalKey("interfaces", &cfg.Interfaces); err != nil {
		log.Printf("warning: failed to load interfaces config: %v (using none)", err)
	}
	if err := viper.UnmarshalKey("script", &cfg.Script); err != nil {
		log.Printf("warning: failed to load script config: %v (using defaults)", err)
	}
	if err := viper.UnmarshalKey("simulator", &cfg.Simulator); err != nil {
		log.Printf("warning: failed to load simulator config: %v (using defaults)", err)
	}

	if err := os.MkdirAll(dirOf(cfg.DBPath), 0o755); err != nil {
		log.Printf("warning: unable to create data dir: %v", err)
	}

	if len(cfg.Interfaces) == 0 {
		log.Printf("no hardware interfaces configured; world will run with devices unreachable until some are added")
	} else {
		for _, iface := range cfg.Interfaces {
			log.Printf("configured interface: %s (%s over %s at %s)", iface.ID, iface.Protocol, iface.Type, iface.Address)
		}
	}

	return cfg
}

// Validate checks that the config file at path is syntactically sound
// and that its values make sense, without mutating global Viper state.
// It catches the two classes of config error that are easy to ship by
// accident: a YAML file that doesn't parse (e.g. tabs, which YAML
// forbids as indentation) and one that parses but names an interface
// with an unsupported protocol or type.
func Validate(path string) error {
	if _, err := os.Stat(path); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}
	if strings.Contains(string(data), "\t") {
		return fmt.Errorf("config: %s contains tab characters; YAML requires spaces for indentation", path)
	}

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	if err := v.ReadInConfig(); err != nil {
		return fmt.Errorf("config: parse %s: %w", path, err)
	}

	if raw := v.Get("interfaces"); raw != nil {
		if _, ok := raw.([]interface{}); !ok {
			return fmt.Errorf("config: malformed interfaces section: expected a list, got %T", raw)
		}
	}
	var interfaces []InterfaceConfig
	if err := v.UnmarshalKey("interfaces", &interfaces); err != nil {
		return fmt.Errorf("config: malformed interfaces section: %w", err)
	}
	for _, iface := range interfaces {
		switch iface.Protocol {
		case "dinamo", "cbusascii", "simulation", "":
		default:
			return fmt.Errorf("config: interface %q: unknown protocol %q", iface.ID, iface.Protocol)
		}
		switch iface.Type {
		case "serial", "tcp", "udp", "simulation", "":
		default:
			return fmt.Errorf("config: interface %q: unknown type %q", iface.ID, iface.Type)
		}
	}
	return nil
}

func dirOf(path string) string {
	for i := len(path) - 1; i >= 0; i-- {
		if path[i] == '/' {
			return path[:i]
		}
	}
	return "."
}

// SaveExampleConfig creates an example config.yaml file documenting
// every available key.
func SaveExampleConfig(path string) error {
	exampleConfig := `# Trainmaster world configuration file.
# Environment variables (uppercased, dots replaced with underscores)
# override these values.

port: 8080
app_env: production
db_path: data/world.db
world_name: "Example Layout"

require_reservation: auto   # auto | yes | no
correct_output_pos_when_locked: true
ext_output_change_action: do_nothing  # do_nothing | emergency_stop_train | emergency_stop_world | power_off_world

interfaces:
  - id: main-bus
    protocol: dinamo       # dinamo | cbusascii | simulation
    type: tcp              # serial | tcp | udp | simulation
    address: 127.0.0.1:2560
    baud_rate: 115200

script:
  enabled: true
  dir: data/scripts
  vars_path: data/script_vars.db

simulator:
  enabled: false
  listen_addr: ":5741"
  tick_millis: 100
`
	return os.WriteFile(path, []byte(exampleConfig), 0644)
}
