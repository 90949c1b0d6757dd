// Package metrics wraps datadog-go to facilitate metric recording.
// Naming convention:
// - Internal process time: *.time
// - External latency: *.latency
// - Error: *.err
package metrics

import (
	"fmt"
	"sync"
	"time"

	"github.com/DataDog/datadog-go/statsd"
	"github.com/spf13/viper"

	"github.com/bidvault/goapi/base/env"
	"github.com/bidvault/goapi/base/log"
)

const (
	// ddRate is the rate to pass metrics to datadog agent. 1 means always
	ddRate = 1
	// buffer 10 counters before sending to statsd
	bufferMetrics = 10
	ddPort        = 8125
)

// Ender provides interface for BumpTime
type Ender interface {
	End()
}

// Service provides interface for metrics
type Service interface {
	BumpAvg(key string, val float64, tags ...string)
	BumpSum(key string, val float64, tags ...string)
	BumpHistogram(key string, val float64, tags ...string)

	BumpTime(key string, tags ...string) Ender
}

var (
	initOnce sync.Once
	ddClient statsd.ClientInterface
)

func initDDClient() {
	addr := fmt.Sprintf("%s:%d", viper.GetString("datadog_host"), ddPort)
	cli, err := statsd.NewBuffered(addr, bufferMetrics)
	if err != nil {
		log.Log().WithFields(log.Fields{"addr": addr, "err": err}).Warn("can't talk to datadog agent, metrics are dropped")
		ddClient = &statsd.NoOpClient{}
		return
	}
	ddClient = cli
}

// New creates a metric client with package name as prefix
func New(pkgName string) Service {
	initOnce.Do(initDDClient)
	return &metrics{
		pkgName: pkgName,
		tags: []string{
			// using host removes all tags associated with host
			"host:",
			"pod:" + env.PodName(),
			"env:" + viper.GetString("env_name"),
			"app:" + viper.GetString("app_name"),
		},
	}
}

type metrics struct {
	pkgName string
	tags    []string
}

func (mt *metrics) ddTags(tags []string) []string {
	res := append([]string{}, mt.tags...)
	for i := 0; i+1 < len(tags); i += 2 {
		res = append(res, tags[i]+":"+tags[i+1])
	}
	return res
}

// BumpAvg bumps the average for the given key.
func (mt *metrics) BumpAvg(key string, val float64, tags ...string) {
	_ = ddClient.Gauge(mt.pkgName+`.`+key, val, mt.ddTags(tags), ddRate)
}

// BumpSum bumps the sum for the given key.
func (mt *metrics) BumpSum(key string, val float64, tags ...string) {
	_ = ddClient.Count(mt.pkgName+`.`+key, int64(val), mt.ddTags(tags), ddRate)
}

// BumpHistogram bumps the histogram for the given key.
func (mt *metrics) BumpHistogram(key string, val float64, tags ...string) {
	_ = ddClient.Histogram(mt.pkgName+`.`+key, val, mt.ddTags(tags), ddRate)
}

// BumpTime records the duration between the call and its End
func (mt *metrics) BumpTime(key string, tags ...string) Ender {
	return &ender{
		metrics: mt,
		key:     key,
		tags:    tags,
		start:   time.Now(),
	}
}

type ender struct {
	metrics *metrics
	key     string
	tags    []string
	start   time.Time
}

func (e *ender) End() {
	ms := float64(time.Since(e.start)) / float64(time.Millisecond)
	_ = ddClient.TimeInMilliseconds(e.metrics.pkgName+`.`+e.key, ms, e.metrics.ddTags(e.tags), ddRate)
}
