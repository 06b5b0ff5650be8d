// Package plugin turns HAProxy stats into collectd style values. It is
// driven by a host: the host builds a Plugin from its configuration and
// calls Read once per polling interval with a Dispatcher receiving the
// values.
package plugin

import (
	"errors"
	"fmt"
	"sort"
	"strconv"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"

	"github.com/wglass/collectd_haproxy/haproxy"
)

const (
	// Name is the collectd plugin name of every value.
	Name = "haproxy"

	svnameField = "svname"
)

// ErrNoSocket is returned by New when no socket path is configured.
var ErrNoSocket = errors.New("no HAProxy socket configured")

// Value is a single collectd value.
type Value struct {
	Plugin         string
	PluginInstance string
	Type           string
	TypeInstance   string

	// Label is the HAProxy info label or stat column the value comes from.
	Label string
	// Proxy and Server identify the stat line; both are empty for info values.
	Proxy  string
	Server string

	Value int64
}

// Dispatcher receives the values of a Read.
type Dispatcher interface {
	Dispatch(Value) error
}

// DispatcherFunc adapts a function to a Dispatcher.
type DispatcherFunc func(Value) error

// Dispatch calls f(v).
func (f DispatcherFunc) Dispatch(v Value) error {
	return f(v)
}

// StatsSource provides parsed HAProxy stats. *haproxy.Socket implements it.
type StatsSource interface {
	Info() ([]haproxy.InfoField, error)
	Stats(frontends, backends, servers bool) ([]haproxy.StatRecord, error)
}

// Plugin reads HAProxy stats and dispatches the known metrics.
type Plugin struct {
	config Config
	source StatsSource
	logger log.Logger
}

// New returns a Plugin reading from the socket configured in cfg.
func New(cfg Config, logger log.Logger) (*Plugin, error) {
	if logger == nil {
		logger = log.NewNopLogger()
	}
	if cfg.Socket == "" {
		return nil, ErrNoSocket
	}

	socket := haproxy.NewSocket(cfg.Socket, logger, haproxy.WithTimeout(cfg.Timeout))
	level.Info(logger).Log("msg", fmt.Sprintf("Using socket path '%s'", cfg.Socket))

	return NewWithSource(cfg, socket, logger), nil
}

// NewWithSource returns a Plugin reading from source.
func NewWithSource(cfg Config, source StatsSource, logger log.Logger) *Plugin {
	if logger == nil {
		logger = log.NewNopLogger()
	}
	return &Plugin{
		config: cfg,
		source: source,
		logger: logger,
	}
}

// Config returns the options the plugin was built with.
func (p *Plugin) Config() Config {
	return p.config
}

// Read collects the enabled stats and hands every known metric to d.
func (p *Plugin) Read(d Dispatcher) error {
	if p.config.IncludeInfo {
		if err := p.collectInfo(d); err != nil {
			return err
		}
	}
	if p.config.IncludeStats {
		if err := p.collectStats(d); err != nil {
			return err
		}
	}
	return nil
}

func (p *Plugin) collectInfo(d Dispatcher) error {
	level.Debug(p.logger).Log("msg", "Reading info")

	fields, err := p.source.Info()
	if err != nil {
		return fmt.Errorf("error reading info: %w", err)
	}

	for _, field := range fields {
		metric, ok := LookupInfoMetric(field.Label)
		if !ok {
			continue
		}
		value, err := strconv.ParseInt(field.Value, 10, 64)
		if err != nil {
			level.Debug(p.logger).Log("msg", "Skipping non integer info value", "label", field.Label, "value", field.Value)
			continue
		}

		err = d.Dispatch(Value{
			Plugin:         Name,
			PluginInstance: Name,
			Type:           metric.Type.String(),
			TypeInstance:   metric.TypeInstance,
			Label:          field.Label,
			Value:          value,
		})
		if err != nil {
			return err
		}
	}
	return nil
}

func (p *Plugin) collectStats(d Dispatcher) error {
	level.Debug(p.logger).Log("msg", "Reading stats")

	records, err := p.source.Stats(p.config.IncludeFrontends, p.config.IncludeBackends, p.config.IncludeServers)
	if err != nil {
		return fmt.Errorf("error reading stats: %w", err)
	}

	for _, record := range records {
		server := record.Fields[svnameField]
		instance := record.Name + "." + server

		fields := make([]string, 0, len(record.Fields))
		for field := range record.Fields {
			if field != svnameField {
				fields = append(fields, field)
			}
		}
		sort.Strings(fields)

		for _, field := range fields {
			metric, ok := LookupStatMetric(field)
			if !ok {
				continue
			}
			value, ok := statValue(field, record.Fields[field])
			if !ok {
				continue
			}

			err := d.Dispatch(Value{
				Plugin:         Name,
				PluginInstance: instance,
				Type:           metric.Type.String(),
				TypeInstance:   metric.TypeInstance,
				Label:          field,
				Proxy:          record.Name,
				Server:         server,
				Value:          value,
			})
			if err != nil {
				return err
			}
		}
	}
	return nil
}

// statValue coerces a stat column to an integer. Empty columns count as
// zero.
func statValue(field, raw string) (int64, bool) {
	if raw == "" {
		return 0, true
	}
	if v, ok := textValue(field, raw); ok {
		return v, true
	}
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}
