package main

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"

	"github.com/wglass/collectd_haproxy/plugin"
)

// reader is implemented by *plugin.Plugin.
type reader interface {
	Read(plugin.Dispatcher) error
}

const putvalFormat = "PUTVAL \"%s/%s-%s/%s-%s\" interval=%s N:%d\n"

// putvalWriter writes values in the format the collectd exec plugin reads
// from its children's stdout.
type putvalWriter struct {
	w        io.Writer
	hostname string
	interval string

	// err is the first write error; collectd is gone once it is set.
	err error
}

func newPutvalWriter(w io.Writer, hostname string, interval time.Duration) *putvalWriter {
	return &putvalWriter{
		w:        w,
		hostname: hostname,
		interval: strconv.FormatFloat(interval.Seconds(), 'f', -1, 64),
	}
}

func (p *putvalWriter) Dispatch(v plugin.Value) error {
	_, err := fmt.Fprintf(p.w, putvalFormat,
		p.hostname,
		v.Plugin,
		v.PluginInstance,
		v.Type,
		v.TypeInstance,
		p.interval,
		v.Value)
	if err != nil && p.err == nil {
		p.err = err
	}
	return err
}

// runPutval reads r right away and then at every interval until ctx is
// done. Read errors are logged and retried at the next interval; a write
// error ends the loop.
func runPutval(ctx context.Context, r reader, w io.Writer, hostname string, interval time.Duration, logger log.Logger) error {
	pw := newPutvalWriter(w, hostname, interval)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		if err := r.Read(pw); err != nil {
			if pw.err != nil {
				return fmt.Errorf("error writing values: %w", pw.err)
			}
			level.Error(logger).Log("msg", "Error reading HAProxy stats", "err", err)
		}

		if ctx.Err() != nil {
			return nil
		}
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}
