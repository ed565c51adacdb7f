// Package dispatcharr Dispatcharr REST 适配器：既是流来源，也是频道管理系统
package dispatcharr

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"

	"ChannelSync/internal/adapter"
	"ChannelSync/internal/config"
	"ChannelSync/internal/interfaces"
	"ChannelSync/internal/model"
	"ChannelSync/internal/utils/httpclient"

	"github.com/sirupsen/logrus"
)

const pageSize = 500

func init() {
	adapter.Register("dispatcharr", func(cfg *config.Config, logger *logrus.Logger) (interfaces.ChannelProvider, error) {
		return NewAdapter(&cfg.Dispatcharr, logger)
	})
}

// APIError 对端返回非 2xx
type APIError struct {
	Status int
	Path   string
	Body   string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("dispatcharr %s 返回 %d: %s", e.Path, e.Status, e.Body)
}

type Adapter struct {
	cfg        *config.DispatcharrConfig
	httpClient *http.Client
	logger     *logrus.Logger

	mu    sync.Mutex
	token string
}

func NewAdapter(cfg *config.DispatcharrConfig, logger *logrus.Logger) (*Adapter, error) {
	if strings.TrimSpace(cfg.BaseURL) == "" {
		return nil, errors.New("dispatcharr base_url 未配置")
	}
	return &Adapter{
		cfg: cfg,
		httpClient: httpclient.NewHTTPClient(httpclient.Options{
			Timeout:   cfg.Timeout,
			Proxy:     cfg.Proxy,
			RateLimit: cfg.RateLimit,
			Burst:     cfg.Burst,
		}, logger),
		logger: logger,
		token:  cfg.Token,
	}, nil
}

// HTTPClient 暴露底层客户端（测试时挂 httpmock）
func (a *Adapter) HTTPClient() *http.Client { return a.httpClient }

func (a *Adapter) GetName() string { return "dispatcharr" }

type streamDTO struct {
	ID               uint64 `json:"id"`
	Name             string `json:"name"`
	URL              string `json:"url"`
	ChannelGroupName string `json:"channel_group_name"`
}

type pageDTO[T any] struct {
	Count   int     `json:"count"`
	Next    *string `json:"next"`
	Results []T     `json:"results"`
}

// FetchStreams 按 M3U 分组拉取流，保持对端顺序
func (a *Adapter) FetchStreams(ctx context.Context, sourceGroup string) ([]model.RawStream, error) {
	var out []model.RawStream
	for page := 1; ; page++ {
		q := url.Values{}
		q.Set("page", strconv.Itoa(page))
		q.Set("page_size", strconv.Itoa(pageSize))
		if sourceGroup != "" {
			q.Set("channel_group_name", sourceGroup)
		}
		var resp pageDTO[streamDTO]
		if err := a.do(ctx, http.MethodGet, "/api/channels/streams/?"+q.Encode(), nil, &resp); err != nil {
			return nil, fmt.Errorf("拉取流失败: %w", err)
		}
		for _, s := range resp.Results {
			out = append(out, model.RawStream{ID: s.ID, Name: s.Name, URL: s.URL, Group: s.ChannelGroupName})
		}
		if resp.Next == nil || len(resp.Results) == 0 {
			break
		}
	}
	a.logger.WithFields(logrus.Fields{"source_group": sourceGroup, "count": len(out)}).Debug("dispatcharr 流拉取完成")
	return out, nil
}

type channelDTO struct {
	ID             uint64   `json:"id,omitempty"`
	Name           string   `json:"name"`
	ChannelNumber  int      `json:"channel_number"`
	TvgID          string   `json:"tvg_id"`
	Streams        []uint64 `json:"streams"`
	ChannelGroupID *uint64  `json:"channel_group_id,omitempty"`
	ProfileIDs     []uint64 `json:"channel_profile_ids,omitempty"`
	LogoTemplateID *uint64  `json:"epg_template_id,omitempty"`
}

// UpsertChannel 以 tvg_id = channel_id 保证幂等：没有 provider id 时先按 tvg_id 查找
func (a *Adapter) UpsertChannel(ctx context.Context, ch interfaces.ProviderChannel) (string, error) {
	body := channelDTO{
		Name:           ch.Name,
		ChannelNumber:  ch.Number,
		TvgID:          ch.ChannelID,
		Streams:        ch.StreamIDs,
		ChannelGroupID: ch.ChannelGroupID,
		ProfileIDs:     ch.ProfileIDs,
		LogoTemplateID: ch.TemplateID,
	}

	providerID := ""
	if ch.ProviderID != nil {
		providerID = *ch.ProviderID
	} else {
		found, err := a.findByTvgID(ctx, ch.ChannelID)
		if err != nil {
			return "", err
		}
		providerID = found
	}

	var out channelDTO
	if providerID != "" {
		err := a.do(ctx, http.MethodPatch, "/api/channels/channels/"+url.PathEscape(providerID)+"/", body, &out)
		if err == nil {
			return providerID, nil
		}
		var apiErr *APIError
		if !errors.As(err, &apiErr) || apiErr.Status != http.StatusNotFound {
			return "", fmt.Errorf("更新频道%s失败: %w", ch.ChannelID, err)
		}
		// 对端已被手工删除，重新创建
		a.logger.WithFields(logrus.Fields{"channel_id": ch.ChannelID, "provider_id": providerID}).Warn("对端频道不存在，重新创建")
	}

	if err := a.do(ctx, http.MethodPost, "/api/channels/channels/", body, &out); err != nil {
		return "", fmt.Errorf("创建频道%s失败: %w", ch.ChannelID, err)
	}
	return strconv.FormatUint(out.ID, 10), nil
}

func (a *Adapter) findByTvgID(ctx context.Context, tvgID string) (string, error) {
	var resp pageDTO[channelDTO]
	if err := a.do(ctx, http.MethodGet, "/api/channels/channels/?tvg_id="+url.QueryEscape(tvgID), nil, &resp); err != nil {
		return "", fmt.Errorf("查询频道%s失败: %w", tvgID, err)
	}
	for _, c := range resp.Results {
		if c.TvgID == tvgID {
			return strconv.FormatUint(c.ID, 10), nil
		}
	}
	return "", nil
}

// DeleteChannel 对端 404 视为已删除
func (a *Adapter) DeleteChannel(ctx context.Context, providerID string) error {
	err := a.do(ctx, http.MethodDelete, "/api/channels/channels/"+url.PathEscape(providerID)+"/", nil, nil)
	var apiErr *APIError
	if errors.As(err, &apiErr) && apiErr.Status == http.StatusNotFound {
		return nil
	}
	return err
}

type tokenDTO struct {
	Access string `json:"access"`
}

// login 用户名密码换取 access token
func (a *Adapter) login(ctx context.Context) (string, error) {
	payload, _ := json.Marshal(map[string]string{"username": a.cfg.Username, "password": a.cfg.Password})
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.url("/api/accounts/token/"), bytes.NewReader(payload))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := a.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("dispatcharr 登录失败: %w", err)
	}
	defer a.closeBody(resp)
	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", &APIError{Status: resp.StatusCode, Path: "/api/accounts/token/", Body: string(b)}
	}
	var tok tokenDTO
	if err := json.NewDecoder(resp.Body).Decode(&tok); err != nil {
		return "", fmt.Errorf("解析 dispatcharr token 失败: %w", err)
	}
	return tok.Access, nil
}

func (a *Adapter) authToken(ctx context.Context, refresh bool) (string, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.token != "" && !refresh {
		return a.token, nil
	}
	if a.cfg.Username == "" {
		return a.token, nil
	}
	tok, err := a.login(ctx)
	if err != nil {
		return "", err
	}
	a.token = tok
	return tok, nil
}

// do 发送 JSON 请求；401 时重新登录重试一次
func (a *Adapter) do(ctx context.Context, method, path string, in, out interface{}) error {
	for attempt := 0; ; attempt++ {
		token, err := a.authToken(ctx, attempt > 0)
		if err != nil {
			return err
		}
		var body io.Reader
		if in != nil {
			b, err := json.Marshal(in)
			if err != nil {
				return err
			}
			body = bytes.NewReader(b)
		}
		req, err := http.NewRequestWithContext(ctx, method, a.url(path), body)
		if err != nil {
			return err
		}
		req.Header.Set("Accept", "application/json")
		if in != nil {
			req.Header.Set("Content-Type", "application/json")
		}
		if token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}

		resp, err := a.httpClient.Do(req)
		if err != nil {
			return err
		}
		if resp.StatusCode == http.StatusUnauthorized && attempt == 0 && a.cfg.Username != "" {
			a.closeBody(resp)
			continue
		}
		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			b, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
			a.closeBody(resp)
			return &APIError{Status: resp.StatusCode, Path: path, Body: string(b)}
		}
		if out != nil && resp.StatusCode != http.StatusNoContent {
			if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
				a.closeBody(resp)
				return fmt.Errorf("解析 dispatcharr 响应失败: %w", err)
			}
		}
		a.closeBody(resp)
		return nil
	}
}

func (a *Adapter) url(path string) string {
	return strings.TrimRight(a.cfg.BaseURL, "/") + path
}

func (a *Adapter) closeBody(resp *http.Response) {
	if err := resp.Body.Close(); err != nil {
		a.logger.Errorf("关闭dispatcharr响应体失败: %v", err)
	}
}
