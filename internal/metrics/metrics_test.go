package metrics

import (
	"testing"
	"time"

	"ChannelSync/internal/model"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerationMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m, err := NewGenerationMetrics(reg)
	require.NoError(t, err)

	m.RecordTrigger("cron", false)
	m.RecordTrigger("api", true)
	m.RecordRun(model.RunSucceeded, 2*time.Second, model.RunReport{
		StreamsTotal: 10, StreamsMatched: 7, ChannelsActive: 5, NumberDrift: 1, ProviderErrors: 2,
		Exhausted: []model.ExhaustedChannel{{GroupID: 1, EventID: "e"}},
	})
	m.RecordRun(model.RunFailed, time.Second, model.RunReport{StreamsTotal: 99})
	m.RecordMatchCache(3, 1)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.runsTotal.WithLabelValues("succeeded")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.runsTotal.WithLabelValues("failed")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.triggersTotal.WithLabelValues("api", "queued")))
	// 失败的运行不覆盖上一次成功的快照
	assert.Equal(t, 10.0, testutil.ToFloat64(m.streamsTotal.WithLabelValues("total")))
	assert.Equal(t, 5.0, testutil.ToFloat64(m.channelsGauge.WithLabelValues("active")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.exhaustedGauge))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.providerErrors))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.matchCacheTotal.WithLabelValues("hit")))

	_, err = NewGenerationMetrics(reg)
	assert.Error(t, err, "重复注册")
}
