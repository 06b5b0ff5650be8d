package plugin

import "strings"

// MetricType is the collectd data source type of a metric.
type MetricType int

const (
	Gauge MetricType = iota
	Counter
)

func (t MetricType) String() string {
	switch t {
	case Gauge:
		return "gauge"
	case Counter:
		return "counter"
	}
	return "unknown"
}

// Metric names the collectd type instance and type an HAProxy field is
// dispatched as.
type Metric struct {
	TypeInstance string
	Type         MetricType
}

var (
	// "show info" labels.
	infoMetrics = map[string]Metric{
		"Nbproc":                      {"num_processes", Gauge},
		"Process_num":                 {"process_num", Gauge},
		"Pid":                         {"pid", Gauge},
		"Uptime_sec":                  {"uptime_seconds", Gauge},
		"Memmax_MB":                   {"max_memory_mb", Gauge},
		"Maxsock":                     {"max_sockets", Gauge},
		"Maxconn":                     {"max_connections", Gauge},
		"Hard_maxconn":                {"hard_max_connections", Gauge},
		"CurrConns":                   {"current_connections", Gauge},
		"CumConns":                    {"connection_count", Counter},
		"CumReq":                      {"request_count", Counter},
		"MaxSslConns":                 {"max_ssl_connections", Gauge},
		"CurrSslConns":                {"current_ssl_connections", Gauge},
		"CumSslConns":                 {"ssl_connection_count", Counter},
		"Maxpipes":                    {"max_pipes", Gauge},
		"PipesUsed":                   {"pipes_used", Gauge},
		"PipesFree":                   {"pipes_free", Gauge},
		"ConnRate":                    {"connection_rate", Gauge},
		"ConnRateLimit":               {"max_connection_rate", Gauge},
		"MaxConnRate":                 {"peak_connection_rate", Gauge},
		"SessRate":                    {"session_rate", Gauge},
		"SessRateLimit":               {"max_session_rate", Gauge},
		"MaxSessRate":                 {"peak_session_rate", Gauge},
		"SslRate":                     {"ssl_rate", Gauge},
		"SslRateLimit":                {"max_ssl_rate", Gauge},
		"MaxSslRate":                  {"peak_ssl_rate", Gauge},
		"SslFrontendKeyRate":          {"ssl_frontend_key_rate", Gauge},
		"SslFrontendMaxKeyRate":       {"peak_ssl_frontend_key_rate", Gauge},
		"SslFrontendSessionReuse_pct": {"ssl_frontend_sess_reuse_pct", Gauge},
		"SslBackendKeyRate":           {"ssl_backend_key_rate", Gauge},
		"SslBackendMaxKeyRate":        {"peak_ssl_backend_key_rate", Gauge},
		"SslCacheLookups":             {"ssl_cache_lookup_count", Counter},
		"SslCacheMisses":              {"ssl_cache_miss_count", Counter},
		"CompressBpsIn":               {"compress_bps_in", Gauge},
		"CompressBpsOut":              {"compress_bps_out", Gauge},
		"CompressBpsRateLim":          {"max_compress_bps_rate", Gauge},
		"ZlibMemUsage":                {"zlib_mem_usage", Gauge},
		"MaxZlibMemUsage":             {"peak_zlib_mem_usage", Gauge},
		"Tasks":                       {"tasks", Gauge},
		"Run_queue":                   {"run_queue", Gauge},
		"Idle_pct":                    {"idle_pct", Gauge},
	}

	// "show stat" columns, see
	// http://cbonte.github.io/haproxy-dconv/configuration-1.5.html#9.1
	statMetrics = map[string]Metric{
		"qcur":           {"queued_request_count", Gauge},
		"qmax":           {"peak_queued_request_count", Gauge},
		"scur":           {"current_session_count", Gauge},
		"smax":           {"peak_session_count", Gauge},
		"slim":           {"max_sessions", Gauge},
		"stot":           {"session_count", Counter},
		"bin":            {"bytes_in", Gauge},
		"bout":           {"bytes_out", Gauge},
		"dreq":           {"denied_request_count", Counter},
		"dresp":          {"denied_response_count", Counter},
		"ereq":           {"error_request_count", Counter},
		"econ":           {"error_connection_count", Counter},
		"eresp":          {"error_response_count", Counter},
		"wretr":          {"conn_retry_count", Counter},
		"wredis":         {"redispatch_count", Counter},
		"status":         {"status", Gauge},
		"weight":         {"server_weight", Gauge},
		"act":            {"active_server_count", Gauge},
		"bck":            {"backup_server_count", Gauge},
		"chkfail":        {"failed_check_count", Counter},
		"chkdown":        {"down_transition_count", Counter},
		"lastchg":        {"last_change_seconds", Counter},
		"downtime":       {"downtime_seconds", Counter},
		"qlimit":         {"max_queue", Gauge},
		"throttle":       {"throttle_pct", Gauge},
		"lbtot":          {"selection_count", Counter},
		"rate":           {"session_rate", Gauge},
		"rate_lim":       {"max_session_rate", Gauge},
		"rate_max":       {"peak_session_rate", Gauge},
		"check_status":   {"check_status", Gauge},
		"check_duration": {"check_duration", Gauge},
		"hrsp_1xx":       {"http_response_1xx", Counter},
		"hrsp_2xx":       {"http_response_2xx", Counter},
		"hrsp_3xx":       {"http_response_3xx", Counter},
		"hrsp_4xx":       {"http_response_4xx", Counter},
		"hrsp_5xx":       {"http_response_5xx", Counter},
		"hrsp_other":     {"http_response_other", Counter},
		"req_rate":       {"request_rate", Gauge},
		"req_rate_max":   {"peak_request_rate", Gauge},
		"req_tot":        {"request_count", Counter},
		"cli_abrt":       {"client_abort_count", Counter},
		"srv_abrt":       {"server_abort_count", Counter},
		"qtime":          {"avg_queue_time", Gauge},
		"ctime":          {"avg_connect_time", Gauge},
		"rtime":          {"avg_response_time", Gauge},
		"ttime":          {"avg_total_session_time", Gauge},
	}

	// Numeric codes for "show stat" columns holding text.
	textMetrics = map[string]map[string]int64{
		"status": {
			"NOLB":  0, // receives connections, excluded from load balancing
			"MAINT": 1,
			"UP":    2,
			"DOWN":  3,
		},
		"check_status": {
			"UNK":     0,
			"INI":     1,
			"SOCKERR": 2,
			"L4OK":    3,
			"L4TOUT":  4,
			"L4CON":   5,
			"L6OK":    6,
			"L6TOUT":  7,
			"L6RSP":   8,
			"L7OK":    9,
			"L7OKC":   10,
			"L7TOUT":  11,
			"L7RSP":   12,
			"L7STS":   13,
		},
	}
)

// LookupInfoMetric returns the metric a "show info" label is dispatched as.
func LookupInfoMetric(label string) (Metric, bool) {
	m, ok := infoMetrics[label]
	return m, ok
}

// LookupStatMetric returns the metric a "show stat" column is dispatched as.
func LookupStatMetric(field string) (Metric, bool) {
	m, ok := statMetrics[field]
	return m, ok
}

// InfoLabels calls fn for every known "show info" label.
func InfoLabels(fn func(label string, m Metric)) {
	for label, m := range infoMetrics {
		fn(label, m)
	}
}

// StatFields calls fn for every known "show stat" column.
func StatFields(fn func(field string, m Metric)) {
	for field, m := range statMetrics {
		fn(field, m)
	}
}

// textValue maps a text column value to its numeric code. HAProxy appends
// transition progress ("UP 1/3") and prefixes running checks with "* ".
func textValue(field, value string) (int64, bool) {
	codes, ok := textMetrics[field]
	if !ok {
		return 0, false
	}
	value = strings.TrimPrefix(value, "* ")
	if i := strings.IndexByte(value, ' '); i >= 0 {
		value = value[:i]
	}
	code, ok := codes[value]
	return code, ok
}
