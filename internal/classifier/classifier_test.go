package classifier

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"ChannelSync/internal/model"
	"ChannelSync/internal/runconfig"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"
)

type fakeSource struct {
	streams map[string][]model.RawStream
	err     error
}

func (f *fakeSource) FetchStreams(_ context.Context, group string) ([]model.RawStream, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.streams[group], nil
}

func quietLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

func TestClassify(t *testing.T) {
	src := &fakeSource{streams: map[string][]model.RawStream{
		"NFL": {
			{ID: 1, Name: "NFL: Bears at Packers"},
			{ID: 2, Name: "NFL: Bears at Packers (Replay)"},
			{ID: 3, Name: "NFL RedZone"},
			{ID: 4, Name: "NBA: Bulls vs Knicks"},
		},
	}}
	g := model.EventGroup{ID: 1, Name: "nfl", Enabled: true, SourceGroup: "NFL",
		ExtractionPatterns: datatypes.NewJSONType(model.ExtractionPatterns{IncludeRegex: `(?i)^nfl`, ExcludeRegex: `(?i)replay`})}
	cfg, err := runconfig.Build(runconfig.Snapshot{Groups: []model.EventGroup{g}}, time.Now())
	require.NoError(t, err)
	group, _ := cfg.Group(1)

	out, err := NewClassifier(src, quietLogger()).Classify(context.Background(), cfg, group)
	require.NoError(t, err)
	require.Len(t, out, 4)
	assert.False(t, out[0].Excluded())
	assert.Equal(t, model.ReasonExcludedRegex, out[1].ExclusionReason)
	assert.Equal(t, model.ReasonNotGame, out[2].ExclusionReason)
	assert.Equal(t, model.ReasonNotIncluded, out[3].ExclusionReason)
	assert.Equal(t, 2, out[2].Order)
}

func TestClassifySkipBuiltinFilter(t *testing.T) {
	src := &fakeSource{streams: map[string][]model.RawStream{"UFC": {{ID: 1, Name: "UFC 310 Main Card"}}}}
	cfg, err := runconfig.Build(runconfig.Snapshot{Groups: []model.EventGroup{{ID: 1, Name: "ufc", Enabled: true, SourceGroup: "UFC", SkipBuiltinFilter: true}}}, time.Now())
	require.NoError(t, err)
	group, _ := cfg.Group(1)

	out, err := NewClassifier(src, quietLogger()).Classify(context.Background(), cfg, group)
	require.NoError(t, err)
	assert.False(t, out[0].Excluded())
}

func TestClassifySourceError(t *testing.T) {
	src := &fakeSource{err: errors.New("boom")}
	cfg, err := runconfig.Build(runconfig.Snapshot{Groups: []model.EventGroup{{ID: 1, Name: "a", Enabled: true}}}, time.Now())
	require.NoError(t, err)
	group, _ := cfg.Group(1)
	_, err = NewClassifier(src, quietLogger()).Classify(context.Background(), cfg, group)
	assert.ErrorContains(t, err, "boom")
}
