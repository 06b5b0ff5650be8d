package main

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/wglass/collectd_haproxy/plugin"
)

const (
	namespace = "haproxy" // For Prometheus metrics.

	infoSubsystem = "info"
	statSubsystem = "stat"
)

var (
	statLabelNames = []string{"proxy", "server"}

	haproxyUp = prometheus.NewDesc(prometheus.BuildFQName(namespace, "", "up"), "Was the last read of HAProxy successful.", nil, nil)
)

type metricDesc struct {
	desc      *prometheus.Desc
	valueType prometheus.ValueType
}

func newInfoDesc(label string, m plugin.Metric) metricDesc {
	return metricDesc{
		desc: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, infoSubsystem, m.TypeInstance),
			fmt.Sprintf("HAProxy process value %s from \"show info\".", label),
			nil, nil,
		),
		valueType: valueType(m.Type),
	}
}

func newStatDesc(field string, m plugin.Metric) metricDesc {
	return metricDesc{
		desc: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, statSubsystem, m.TypeInstance),
			fmt.Sprintf("HAProxy proxy column %s from \"show stat\".", field),
			statLabelNames, nil,
		),
		valueType: valueType(m.Type),
	}
}

func valueType(t plugin.MetricType) prometheus.ValueType {
	if t == plugin.Counter {
		return prometheus.CounterValue
	}
	return prometheus.GaugeValue
}
