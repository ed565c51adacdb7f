// Package schedule HTTP JSON 赛程源
package schedule

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"ChannelSync/internal/config"
	"ChannelSync/internal/model"
	"ChannelSync/internal/utils/httpclient"

	"github.com/sirupsen/logrus"
)

// Feed 实现 interfaces.ScheduleProvider
type Feed struct {
	cfg        *config.ScheduleConfig
	httpClient *http.Client
	logger     *logrus.Logger
}

func NewFeed(cfg *config.ScheduleConfig, logger *logrus.Logger) (*Feed, error) {
	if strings.TrimSpace(cfg.BaseURL) == "" {
		return nil, errors.New("schedule base_url 未配置")
	}
	return &Feed{
		cfg:        cfg,
		httpClient: httpclient.NewHTTPClient(httpclient.Options{Timeout: cfg.Timeout}, logger),
		logger:     logger,
	}, nil
}

// HTTPClient 暴露底层客户端（测试时挂 httpmock）
func (f *Feed) HTTPClient() *http.Client { return f.httpClient }

func (f *Feed) GetName() string { return "schedule-feed" }

type eventDTO struct {
	ID          string   `json:"id"`
	League      string   `json:"league"`
	Sport       string   `json:"sport"`
	Name        string   `json:"name"`
	Start       string   `json:"start"`
	End         string   `json:"end"`
	Status      string   `json:"status"`
	Competitors []string `json:"competitors"`
}

type eventsDTO struct {
	Events []eventDTO `json:"events"`
}

type leaguesDTO struct {
	Leagues []string `json:"leagues"`
}

// Events 联赛在 [from, to) 内开赛的赛事
func (f *Feed) Events(ctx context.Context, league string, from, to time.Time) ([]model.MatchedEvent, error) {
	q := url.Values{}
	q.Set("from", from.UTC().Format(time.RFC3339))
	q.Set("to", to.UTC().Format(time.RFC3339))
	var resp eventsDTO
	if err := f.get(ctx, "/v1/leagues/"+url.PathEscape(league)+"/events?"+q.Encode(), &resp); err != nil {
		return nil, fmt.Errorf("查询联赛%s赛程失败: %w", league, err)
	}

	out := make([]model.MatchedEvent, 0, len(resp.Events))
	for _, e := range resp.Events {
		start, err := time.Parse(time.RFC3339, e.Start)
		if err != nil {
			f.logger.WithFields(logrus.Fields{"event_id": e.ID, "start": e.Start}).Warn("赛事开赛时间无法解析，已跳过")
			continue
		}
		ev := model.MatchedEvent{
			EventID:      e.ID,
			League:       e.League,
			Sport:        e.Sport,
			Name:         e.Name,
			StartTime:    start,
			Status:       parseStatus(e.Status),
			Participants: e.Competitors,
		}
		if ev.League == "" {
			ev.League = league
		}
		if e.End != "" {
			if end, err := time.Parse(time.RFC3339, e.End); err == nil {
				ev.EndTime = end
			}
		}
		if ev.StartTime.Before(from) || !ev.StartTime.Before(to) {
			continue
		}
		out = append(out, ev)
	}
	return out, nil
}

func parseStatus(s string) model.EventStatus {
	switch strings.ToLower(s) {
	case "final", "post", "completed", "finished":
		return model.EventFinal
	case "live", "in", "in_progress":
		return model.EventLive
	default:
		return model.EventScheduled
	}
}

func (f *Feed) TeamLeagues(ctx context.Context, team string) ([]string, error) {
	var resp leaguesDTO
	if err := f.get(ctx, "/v1/teams/"+url.PathEscape(team)+"/leagues", &resp); err != nil {
		return nil, fmt.Errorf("查询球队%s所在联赛失败: %w", team, err)
	}
	return resp.Leagues, nil
}

func (f *Feed) SoccerLeagues(ctx context.Context) ([]string, error) {
	var resp leaguesDTO
	if err := f.get(ctx, "/v1/sports/soccer/leagues", &resp); err != nil {
		return nil, fmt.Errorf("查询足球联赛列表失败: %w", err)
	}
	return resp.Leagues, nil
}

func (f *Feed) get(ctx context.Context, path string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, strings.TrimRight(f.cfg.BaseURL, "/")+path, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if f.cfg.APIKey != "" {
		req.Header.Set("X-API-Key", f.cfg.APIKey)
	}
	resp, err := f.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			f.logger.Errorf("关闭赛程响应体失败: %v", err)
		}
	}()
	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("赛程源返回 %d: %s", resp.StatusCode, string(b))
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
