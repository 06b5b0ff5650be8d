package plugin

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/wglass/collectd_haproxy/haproxy"
)

type fakeSource struct {
	info     []haproxy.InfoField
	stats    []haproxy.StatRecord
	err      error
	infoRuns int
	statRuns int
	filter   [3]bool
}

func (s *fakeSource) Info() ([]haproxy.InfoField, error) {
	s.infoRuns++
	return s.info, s.err
}

func (s *fakeSource) Stats(frontends, backends, servers bool) ([]haproxy.StatRecord, error) {
	s.statRuns++
	s.filter = [3]bool{frontends, backends, servers}
	return s.stats, s.err
}

func collect(t *testing.T, p *Plugin) []Value {
	t.Helper()
	var values []Value
	err := p.Read(DispatcherFunc(func(v Value) error {
		values = append(values, v)
		return nil
	}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return values
}

func TestNewWithoutSocket(t *testing.T) {
	if _, err := New(DefaultConfig(), nil); !errors.Is(err, ErrNoSocket) {
		t.Fatalf("expected ErrNoSocket, got %v", err)
	}
}

func TestNewLogsSocketPath(t *testing.T) {
	logger := &logRecorder{}
	cfg := DefaultConfig()
	cfg.Socket = "/var/run/asdf.sock"

	p, err := New(cfg, logger)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, ok := p.source.(*haproxy.Socket); !ok {
		t.Errorf("expected a socket source, got %T", p.source)
	}
	if p.source.(*haproxy.Socket).Path() != "/var/run/asdf.sock" {
		t.Errorf("unexpected socket path %q", p.source.(*haproxy.Socket).Path())
	}
	infos := logger.messages("info")
	if len(infos) != 1 || infos[0] != "Using socket path '/var/run/asdf.sock'" {
		t.Errorf("unexpected info logs %q", infos)
	}
}

func TestReadHonorsIncludeFlags(t *testing.T) {
	for _, tc := range []struct {
		info, stats        bool
		infoRuns, statRuns int
	}{
		{true, true, 1, 1},
		{false, true, 0, 1},
		{true, false, 1, 0},
		{false, false, 0, 0},
	} {
		source := &fakeSource{}
		cfg := DefaultConfig()
		cfg.IncludeInfo = tc.info
		cfg.IncludeStats = tc.stats

		collect(t, NewWithSource(cfg, source, nil))

		if source.infoRuns != tc.infoRuns || source.statRuns != tc.statRuns {
			t.Errorf("info=%v stats=%v: got %d info and %d stat reads", tc.info, tc.stats, source.infoRuns, source.statRuns)
		}
	}
}

func TestReadPassesTypeFilter(t *testing.T) {
	source := &fakeSource{}
	cfg := DefaultConfig()
	cfg.IncludeFrontends = false
	cfg.IncludeServers = false

	collect(t, NewWithSource(cfg, source, nil))

	if expect := [3]bool{false, true, false}; source.filter != expect {
		t.Errorf("expected filter %v, got %v", expect, source.filter)
	}
}

func TestCollectInfoSkipsUnknownMetrics(t *testing.T) {
	source := &fakeSource{info: []haproxy.InfoField{
		{Label: "Version", Value: "1.6.6"},
		{Label: "CurrConns", Value: "10"},
		{Label: "CumReq", Value: "3"},
		{Label: "UpstreamErrors", Value: "1"},
		{Label: "Idle_pct", Value: "n/a"},
	}}
	cfg := DefaultConfig()
	cfg.IncludeStats = false

	values := collect(t, NewWithSource(cfg, source, nil))

	expect := []Value{
		{Plugin: "haproxy", PluginInstance: "haproxy", Type: "gauge", TypeInstance: "current_connections", Label: "CurrConns", Value: 10},
		{Plugin: "haproxy", PluginInstance: "haproxy", Type: "counter", TypeInstance: "request_count", Label: "CumReq", Value: 3},
	}
	if diff := cmp.Diff(expect, values); diff != "" {
		t.Errorf("unexpected values (-want +got):\n%s", diff)
	}
}

func TestCollectStats(t *testing.T) {
	source := &fakeSource{stats: []haproxy.StatRecord{
		{Name: "app_servers", Fields: map[string]string{
			"svname":     "app01",
			"scur":       "15",
			"hrsp_4xx":   "3",
			"status":     "UP 1/3",
			"pid":        "1",
			"FakeStatus": "ok",
		}},
		{Name: "app_servers", Fields: map[string]string{
			"svname":       "app02",
			"scur":         "8",
			"hrsp_4xx":     "",
			"check_status": "* L4CON",
			"bin":          "lots",
		}},
	}}
	cfg := DefaultConfig()
	cfg.IncludeInfo = false

	values := collect(t, NewWithSource(cfg, source, nil))

	stat := func(server, typ, typeInstance, label string, v int64) Value {
		return Value{
			Plugin:         "haproxy",
			PluginInstance: "app_servers." + server,
			Type:           typ,
			TypeInstance:   typeInstance,
			Label:          label,
			Proxy:          "app_servers",
			Server:         server,
			Value:          v,
		}
	}
	expect := []Value{
		stat("app01", "counter", "http_response_4xx", "hrsp_4xx", 3),
		stat("app01", "gauge", "current_session_count", "scur", 15),
		stat("app01", "gauge", "status", "status", 2),
		stat("app02", "gauge", "check_status", "check_status", 5),
		stat("app02", "counter", "http_response_4xx", "hrsp_4xx", 0),
		stat("app02", "gauge", "current_session_count", "scur", 8),
	}
	if diff := cmp.Diff(expect, values); diff != "" {
		t.Errorf("unexpected values (-want +got):\n%s", diff)
	}
}

func TestReadErrors(t *testing.T) {
	sourceErr := errors.New("socket gone")
	p := NewWithSource(DefaultConfig(), &fakeSource{err: sourceErr}, nil)
	if err := p.Read(DispatcherFunc(func(Value) error { return nil })); !errors.Is(err, sourceErr) {
		t.Errorf("expected source error, got %v", err)
	}

	dispatchErr := errors.New("broken pipe")
	p = NewWithSource(DefaultConfig(), &fakeSource{
		info: []haproxy.InfoField{{Label: "CurrConns", Value: "1"}},
	}, nil)
	if err := p.Read(DispatcherFunc(func(Value) error { return dispatchErr })); !errors.Is(err, dispatchErr) {
		t.Errorf("expected dispatch error, got %v", err)
	}
}

func TestTextValue(t *testing.T) {
	for _, tc := range []struct {
		field, value string
		expect       int64
		ok           bool
	}{
		{"status", "UP", 2, true},
		{"status", "DOWN 1/2", 3, true},
		{"status", "MAINT", 1, true},
		{"status", "OPEN", 0, false},
		{"check_status", "L7OK", 9, true},
		{"check_status", "* L7STS", 13, true},
		{"scur", "UP", 0, false},
	} {
		got, ok := textValue(tc.field, tc.value)
		if got != tc.expect || ok != tc.ok {
			t.Errorf("textValue(%q, %q) = %d, %v; expected %d, %v", tc.field, tc.value, got, ok, tc.expect, tc.ok)
		}
	}
}

func TestMetricTables(t *testing.T) {
	seen := map[string]string{}
	StatFields(func(field string, m Metric) {
		if other, ok := seen[m.TypeInstance]; ok {
			t.Errorf("stat columns %s and %s share type instance %s", field, other, m.TypeInstance)
		}
		seen[m.TypeInstance] = field
	})

	seen = map[string]string{}
	InfoLabels(func(label string, m Metric) {
		if other, ok := seen[m.TypeInstance]; ok {
			t.Errorf("info labels %s and %s share type instance %s", label, other, m.TypeInstance)
		}
		seen[m.TypeInstance] = label
	})

	if m, ok := LookupInfoMetric("CumConns"); !ok || m != (Metric{"connection_count", Counter}) {
		t.Errorf("unexpected CumConns metric %v", m)
	}
	if m, ok := LookupStatMetric("hrsp_5xx"); !ok || m != (Metric{"http_response_5xx", Counter}) {
		t.Errorf("unexpected hrsp_5xx metric %v", m)
	}
	if _, ok := LookupStatMetric("svname"); ok {
		t.Error("svname must not be a metric")
	}
}
