package service

import (
	"context"

	"ChannelSync/internal/interfaces"
	"ChannelSync/internal/model"
	"ChannelSync/internal/repository"
)

// ChannelService 托管频道与节目单查询
type ChannelService struct {
	repo repository.ChannelRepository
}

func NewChannelService(repo repository.ChannelRepository) *ChannelService {
	return &ChannelService{repo: repo}
}

func (s *ChannelService) List(ctx context.Context, filter repository.ChannelFilter) ([]model.ManagedChannel, error) {
	return s.repo.List(ctx, filter)
}

// EPG 当前 active 频道的 (频道号, 赛事时间表)，按频道号升序
func (s *ChannelService) EPG(ctx context.Context) ([]interfaces.EPGEntry, error) {
	list, err := s.repo.List(ctx, repository.ChannelFilter{State: model.ChannelActive})
	if err != nil {
		return nil, err
	}
	ptrs := make([]*model.ManagedChannel, len(list))
	for i := range list {
		ptrs[i] = &list[i]
	}
	return EPGEntries(ptrs), nil
}
