package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"ChannelSync/internal/model"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// RunRepository 生成任务历史
type RunRepository interface {
	Create(ctx context.Context, run *model.GenerationRun) error
	Finish(ctx context.Context, runID string, status model.RunStatus, report model.RunReport, runErr error) error
	List(ctx context.Context, limit int) ([]model.GenerationRun, error)
	Latest(ctx context.Context) (*model.GenerationRun, error)
}

type runRepository struct {
	db *gorm.DB
}

func NewRunRepository(db *gorm.DB) RunRepository {
	return &runRepository{db: db}
}

func (r *runRepository) Create(ctx context.Context, run *model.GenerationRun) error {
	if err := r.db.WithContext(ctx).Create(run).Error; err != nil {
		return fmt.Errorf("记录生成任务失败: %w, run_id: %s", err, run.RunID)
	}
	return nil
}

func (r *runRepository) Finish(ctx context.Context, runID string, status model.RunStatus, report model.RunReport, runErr error) error {
	now := time.Now()
	updates := map[string]interface{}{
		"status":      status,
		"report":      datatypes.NewJSONType(report),
		"finished_at": &now,
	}
	if runErr != nil {
		msg := runErr.Error()
		updates["error"] = &msg
	}
	if err := r.db.WithContext(ctx).Model(&model.GenerationRun{}).Where("run_id = ?", runID).Updates(updates).Error; err != nil {
		return fmt.Errorf("更新生成任务失败: %w, run_id: %s", err, runID)
	}
	return nil
}

// List 最近的 limit 条，默认 20，最多 100
func (r *runRepository) List(ctx context.Context, limit int) ([]model.GenerationRun, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	var list []model.GenerationRun
	if err := r.db.WithContext(ctx).Order("started_at DESC").Order("id DESC").Limit(limit).Find(&list).Error; err != nil {
		return nil, err
	}
	return list, nil
}

func (r *runRepository) Latest(ctx context.Context) (*model.GenerationRun, error) {
	var run model.GenerationRun
	if err := r.db.WithContext(ctx).Order("started_at DESC").Order("id DESC").First(&run).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &run, nil
}
