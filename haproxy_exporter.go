package main

import (
	"context"
	"net/http"
	_ "net/http/pprof"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/prometheus/common/promlog"
	"github.com/prometheus/common/promlog/flag"
	"github.com/prometheus/common/version"
	"github.com/prometheus/exporter-toolkit/web"
	"github.com/prometheus/exporter-toolkit/web/kingpinflag"
	"gopkg.in/alecthomas/kingpin.v2"

	"github.com/wglass/collectd_haproxy/plugin"
)

const programName = "collectd_haproxy"

// Exporter reads HAProxy stats through the plugin on every scrape and
// exports them using the prometheus metrics package.
type Exporter struct {
	reader reader
	mutex  sync.Mutex

	totalScrapes, scrapeFailures prometheus.Counter
	infoMetrics, statMetrics     map[string]metricDesc
	logger                       log.Logger
}

// NewExporter returns an initialized Exporter.
func NewExporter(r reader, logger log.Logger) *Exporter {
	e := &Exporter{
		reader: r,
		totalScrapes: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "exporter_total_scrapes",
			Help:      "Current total HAProxy scrapes.",
		}),
		scrapeFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "exporter_scrape_failures",
			Help:      "Number of errors while scraping HAProxy.",
		}),
		infoMetrics: map[string]metricDesc{},
		statMetrics: map[string]metricDesc{},
		logger:      logger,
	}
	plugin.InfoLabels(func(label string, m plugin.Metric) {
		e.infoMetrics[label] = newInfoDesc(label, m)
	})
	plugin.StatFields(func(field string, m plugin.Metric) {
		e.statMetrics[field] = newStatDesc(field, m)
	})
	return e
}

// Describe describes all the metrics ever exported by the exporter. It
// implements prometheus.Collector.
func (e *Exporter) Describe(ch chan<- *prometheus.Desc) {
	for _, m := range e.infoMetrics {
		ch <- m.desc
	}
	for _, m := range e.statMetrics {
		ch <- m.desc
	}
	ch <- haproxyUp
	ch <- e.totalScrapes.Desc()
	ch <- e.scrapeFailures.Desc()
}

// Collect reads the stats from HAProxy and delivers them as Prometheus
// metrics. It implements prometheus.Collector.
func (e *Exporter) Collect(ch chan<- prometheus.Metric) {
	e.mutex.Lock() // To protect metrics from concurrent collects.
	defer e.mutex.Unlock()

	up := e.scrape(ch)

	ch <- prometheus.MustNewConstMetric(haproxyUp, prometheus.GaugeValue, up)
	ch <- e.totalScrapes
	ch <- e.scrapeFailures
}

func (e *Exporter) scrape(ch chan<- prometheus.Metric) (up float64) {
	e.totalScrapes.Inc()

	err := e.reader.Read(plugin.DispatcherFunc(func(v plugin.Value) error {
		if v.Proxy == "" {
			if m, ok := e.infoMetrics[v.Label]; ok {
				ch <- prometheus.MustNewConstMetric(m.desc, m.valueType, float64(v.Value))
			}
			return nil
		}
		if m, ok := e.statMetrics[v.Label]; ok {
			ch <- prometheus.MustNewConstMetric(m.desc, m.valueType, float64(v.Value), v.Proxy, v.Server)
		}
		return nil
	}))
	if err != nil {
		level.Error(e.logger).Log("msg", "Can't scrape HAProxy", "err", err)
		e.scrapeFailures.Inc()
		return 0
	}
	return 1
}

func main() {
	var (
		webConfig     = kingpinflag.AddFlags(kingpin.CommandLine, ":9101")
		metricsPath   = kingpin.Flag("web.telemetry-path", "Path under which to expose metrics.").Default("/metrics").String()
		socketPath    = kingpin.Flag("haproxy.socket", "Path of the HAProxy stats socket.").Default("/var/run/haproxy.sock").String()
		timeout       = kingpin.Flag("haproxy.timeout", "Timeout for a command on the HAProxy socket, 0 waits until HAProxy closes the connection.").Default("0s").Duration()
		includeInfo   = kingpin.Flag("haproxy.include-info", "Collect \"show info\" metrics.").Default("true").Bool()
		includeStats  = kingpin.Flag("haproxy.include-stats", "Collect \"show stat\" metrics.").Default("true").Bool()
		includeFront  = kingpin.Flag("haproxy.include-frontends", "Collect frontend stats.").Default("true").Bool()
		includeBack   = kingpin.Flag("haproxy.include-backends", "Collect backend stats.").Default("true").Bool()
		includeServer = kingpin.Flag("haproxy.include-servers", "Collect server stats.").Default("true").Bool()
		configFile    = kingpin.Flag("config.file", "YAML file of plugin options (Socket, IncludeInfo, ...), applied over the flags.").String()
		putval        = kingpin.Flag("collectd.putval", "Write collectd PUTVAL lines to stdout at every interval instead of serving HTTP.").Bool()
		hostname      = kingpin.Flag("collectd.hostname", "Host name of the PUTVAL identifiers, defaults to the system host name.").Envar("COLLECTD_HOSTNAME").String()
		interval      = kingpin.Flag("collectd.interval", "Seconds between two reads in PUTVAL mode.").Envar("COLLECTD_INTERVAL").Default("10").Float64()
	)

	promlogConfig := &promlog.Config{}
	flag.AddFlags(kingpin.CommandLine, promlogConfig)
	kingpin.Version(version.Print(programName))
	kingpin.HelpFlag.Short('h')
	kingpin.Parse()
	logger := promlog.New(promlogConfig)

	cfg := plugin.DefaultConfig()
	cfg.Socket = *socketPath
	cfg.Timeout = *timeout
	cfg.IncludeInfo = *includeInfo
	cfg.IncludeStats = *includeStats
	cfg.IncludeFrontends = *includeFront
	cfg.IncludeBackends = *includeBack
	cfg.IncludeServers = *includeServer

	if *configFile != "" {
		nodes, err := plugin.LoadConfigFile(*configFile)
		if err != nil {
			level.Error(logger).Log("msg", "Error loading config file", "file", *configFile, "err", err)
			os.Exit(1)
		}
		if err := cfg.Apply(nodes, logger); err != nil {
			level.Error(logger).Log("msg", "Invalid config file", "file", *configFile, "err", err)
			os.Exit(1)
		}
	}

	p, err := plugin.New(cfg, logger)
	if err != nil {
		level.Error(logger).Log("msg", "Error creating plugin", "err", err)
		os.Exit(1)
	}

	level.Info(logger).Log("msg", "Starting "+programName, "version", version.Info())
	level.Info(logger).Log("msg", "Build context", "context", version.BuildContext())

	if *putval {
		if *interval <= 0 {
			level.Error(logger).Log("msg", "Interval must be positive", "interval", *interval)
			os.Exit(1)
		}
		host := *hostname
		if host == "" {
			if host, err = os.Hostname(); err != nil {
				level.Error(logger).Log("msg", "Can't determine host name", "err", err)
				os.Exit(1)
			}
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		d := time.Duration(*interval * float64(time.Second))
		if err := runPutval(ctx, p, os.Stdout, host, d, logger); err != nil {
			level.Error(logger).Log("msg", "Stopped writing values", "err", err)
			os.Exit(1)
		}
		return
	}

	prometheus.MustRegister(NewExporter(p, logger))
	prometheus.MustRegister(version.NewCollector(programName))

	http.Handle(*metricsPath, promhttp.Handler())
	http.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<html>
             <head><title>collectd_haproxy</title></head>
             <body>
             <h1>collectd_haproxy</h1>
             <p><a href='` + *metricsPath + `'>Metrics</a></p>
             </body>
             </html>`))
	})
	srv := &http.Server{}
	if err := web.ListenAndServe(srv, webConfig, logger); err != nil {
		level.Error(logger).Log("msg", "Error starting HTTP server", "err", err)
		os.Exit(1)
	}
}
