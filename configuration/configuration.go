package configuration

import (
	"errors"
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v2"

	"github.com/bartossh/Paygate/block"
	"github.com/bartossh/Paygate/bookkeeping"
	"github.com/bartossh/Paygate/cleanup"
	"github.com/bartossh/Paygate/emulator"
	"github.com/bartossh/Paygate/natsclient"
	"github.com/bartossh/Paygate/repohelper"
	"github.com/bartossh/Paygate/rpc"
	"github.com/bartossh/Paygate/server"
	"github.com/bartossh/Paygate/telemetry"
	"github.com/bartossh/Paygate/watcher"
	"github.com/bartossh/Paygate/webhooks"
	"github.com/bartossh/Paygate/zincadapter"
)

// Configuration is the main configuration of the application that corresponds to the *.yaml file
// that holds the configuration.
type Configuration struct {
	NodeRPC    rpc.Config          `yaml:"node_rpc"`
	Block      block.Config        `yaml:"block"`
	Watcher    watcher.Config      `yaml:"watcher"`
	Webhooks   webhooks.Config     `yaml:"webhooks"`
	Bookkeeper bookkeeping.Config  `yaml:"bookkeeping"`
	Cleanup    cleanup.Config      `yaml:"cleanup"`
	Database   repohelper.DBConfig `yaml:"database"`
	Nats       natsclient.Config   `yaml:"nats"`
	Server     server.Config       `yaml:"server"`
	ZincLogger zincadapter.Config  `yaml:"zinc_logger"`
	Telemetry  telemetry.Config    `yaml:"telemetry"`
	Emulator   emulator.Config     `yaml:"emulator"`
}

// Read reads the configuration from the file and returns the Configuration with set fields according to the yaml setup.
// References in the form of ${VAR} are replaced with environment variables before parsing.
func Read(path string) (Configuration, error) {
	buf, err := os.ReadFile(path)
	if err != nil {
		return Configuration{}, err
	}

	var main Configuration
	err = yaml.Unmarshal([]byte(os.ExpandEnv(string(buf))), &main)
	if err != nil {
		return Configuration{}, fmt.Errorf("in file %q: %w", path, err)
	}

	return main, nil
}

// Load loads environment variables from the env file, when it exists, and reads the configuration file.
func Load(envPath, path string) (Configuration, error) {
	if envPath != "" {
		if err := godotenv.Load(envPath); err != nil && !errors.Is(err, os.ErrNotExist) {
			return Configuration{}, fmt.Errorf("env file %q: %w", envPath, err)
		}
	}
	return Read(path)
}

// Validate validates the sections the gateway cannot start without.
func (c Configuration) Validate() error {
	var errs []error
	if err := c.NodeRPC.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("node_rpc: %w", err))
	}
	if err := c.Bookkeeper.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("bookkeeping: %w", err))
	}
	if err := c.Cleanup.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("cleanup: %w", err))
	}
	if c.Database.ConnStr == "" {
		errs = append(errs, errors.New("database: conn_str is empty"))
	}
	return errors.Join(errs...)
}
