// Package classifier 把来源中的原始流筛成候选赛事流
package classifier

import (
	"context"
	"fmt"

	"ChannelSync/internal/extraction"
	"ChannelSync/internal/interfaces"
	"ChannelSync/internal/model"
	"ChannelSync/internal/runconfig"

	"github.com/sirupsen/logrus"
)

// Classifier include/exclude 正则 + 内置赛事识别
type Classifier struct {
	source interfaces.StreamSource
	logger *logrus.Logger
}

func NewClassifier(source interfaces.StreamSource, logger *logrus.Logger) *Classifier {
	return &Classifier{source: source, logger: logger}
}

// Classify 拉取组的来源流并逐条判定。被排除的流保留在结果里并带上原因，便于统计。
func (c *Classifier) Classify(ctx context.Context, cfg runconfig.RunConfig, group runconfig.ResolvedGroupConfig) ([]model.StreamCandidate, error) {
	raws, err := c.source.FetchStreams(ctx, group.SourceGroup)
	if err != nil {
		return nil, fmt.Errorf("拉取组%d的流失败: %w", group.ID, err)
	}
	patterns := cfg.Patterns.For(group.ID)

	out := make([]model.StreamCandidate, 0, len(raws))
	excluded := 0
	for i, r := range raws {
		cand := model.StreamCandidate{StreamID: r.ID, Name: r.Name, Order: i}
		switch {
		case !patterns.Included(r.Name):
			cand.ExclusionReason = model.ReasonNotIncluded
		case patterns.Excluded(r.Name):
			cand.ExclusionReason = model.ReasonExcludedRegex
		case !group.SkipBuiltinFilter && !extraction.IsGameName(r.Name):
			cand.ExclusionReason = model.ReasonNotGame
		}
		if cand.Excluded() {
			excluded++
		}
		out = append(out, cand)
	}

	c.logger.WithFields(logrus.Fields{
		"group_id": group.ID,
		"source":   group.SourceGroup,
		"total":    len(raws),
		"excluded": excluded,
	}).Debug("流分类完成")
	return out, nil
}
