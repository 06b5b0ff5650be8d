package plugin

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"gopkg.in/yaml.v2"
)

// Config holds the plugin options.
type Config struct {
	Socket           string
	Timeout          time.Duration
	IncludeInfo      bool
	IncludeStats     bool
	IncludeFrontends bool
	IncludeBackends  bool
	IncludeServers   bool
}

// DefaultConfig returns a Config collecting everything. It has no socket.
func DefaultConfig() Config {
	return Config{
		IncludeInfo:      true,
		IncludeStats:     true,
		IncludeFrontends: true,
		IncludeBackends:  true,
		IncludeServers:   true,
	}
}

// ConfigNode is a single option of a collectd style configuration block.
type ConfigNode struct {
	Key    string
	Values []interface{}
}

// Apply sets the options named by nodes. Unknown options are logged and
// ignored.
func (c *Config) Apply(nodes []ConfigNode, logger log.Logger) error {
	if logger == nil {
		logger = log.NewNopLogger()
	}
	level.Debug(logger).Log("msg", "Configuring")

	for _, node := range nodes {
		var target *bool
		switch node.Key {
		case "Socket":
			s, err := stringValue(node)
			if err != nil {
				return err
			}
			c.Socket = s
			continue
		case "Timeout":
			s, err := stringValue(node)
			if err != nil {
				return err
			}
			d, err := time.ParseDuration(s)
			if err != nil {
				return fmt.Errorf("invalid value for %s: %w", node.Key, err)
			}
			c.Timeout = d
			continue
		case "IncludeInfo":
			target = &c.IncludeInfo
		case "IncludeStats":
			target = &c.IncludeStats
		case "IncludeFrontendStats":
			target = &c.IncludeFrontends
		case "IncludeBackendStats":
			target = &c.IncludeBackends
		case "IncludeServerStats":
			target = &c.IncludeServers
		default:
			level.Warn(logger).Log("msg", fmt.Sprintf("Unknown config option: '%s'", node.Key))
			continue
		}

		b, err := boolValue(node)
		if err != nil {
			return err
		}
		*target = b
	}
	return nil
}

func stringValue(node ConfigNode) (string, error) {
	if len(node.Values) == 0 || node.Values[0] == nil {
		return "", fmt.Errorf("missing value for %s", node.Key)
	}
	return fmt.Sprint(node.Values[0]), nil
}

func boolValue(node ConfigNode) (bool, error) {
	if len(node.Values) == 0 || node.Values[0] == nil {
		return false, fmt.Errorf("missing value for %s", node.Key)
	}
	switch v := node.Values[0].(type) {
	case bool:
		return v, nil
	case int:
		return v != 0, nil
	case float64:
		return v != 0, nil
	case string:
		b, err := strconv.ParseBool(v)
		if err != nil {
			return false, fmt.Errorf("invalid value for %s: %w", node.Key, err)
		}
		return b, nil
	}
	return false, fmt.Errorf("invalid value for %s: %v", node.Key, node.Values[0])
}

// LoadConfigFile reads the options of a YAML file, in file order. Each key
// holds a single value or a list of values:
//
//	Socket: /var/run/haproxy.sock
//	IncludeServerStats: false
func LoadConfigFile(path string) ([]ConfigNode, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return parseConfig(content)
}

func parseConfig(content []byte) ([]ConfigNode, error) {
	var items yaml.MapSlice
	if err := yaml.Unmarshal(content, &items); err != nil {
		return nil, fmt.Errorf("error parsing config: %w", err)
	}

	nodes := make([]ConfigNode, 0, len(items))
	for _, item := range items {
		node := ConfigNode{Key: fmt.Sprint(item.Key)}
		if values, ok := item.Value.([]interface{}); ok {
			node.Values = values
		} else {
			node.Values = []interface{}{item.Value}
		}
		nodes = append(nodes, node)
	}
	return nodes, nil
}
