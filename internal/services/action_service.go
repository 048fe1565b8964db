// internal/services/action_service.go
package services

import (
	"strings"
	"sync"

	"github.com/google/uuid"

	apperrors "github.com/charaverse/charachat/internal/errors"
	"github.com/charaverse/charachat/internal/models"
	"github.com/charaverse/charachat/internal/storage"
)

// 首次启动时预置的快捷按键
func defaultActions() []*models.Action {
	return []*models.Action{
		{ID: uuid.NewString(), Label: "撒嬌", Prompt: "角色在不失人設的前提下，親密地撒嬌，語氣軟糯，但不越界。"},
		{ID: uuid.NewString(), Label: "吐槽", Prompt: "角色機智吐槽並帶點幽默，保持好感。"},
		{ID: uuid.NewString(), Label: "安慰", Prompt: "角色溫柔安慰，提供實際支持與貼心話語。"},
	}
}

// ActionService 处理快捷按键的增删改查
type ActionService struct {
	store *storage.RecordStore

	mu      sync.RWMutex
	actions []*models.Action
}

// NewActionService 创建按键服务并加载持久化记录，首次运行时写入预置按键
func NewActionService(store *storage.RecordStore) (*ActionService, error) {
	service := &ActionService{store: store}

	if !store.Exists(storage.RecordActions) {
		service.actions = defaultActions()
		if err := store.Save(storage.RecordActions, service.actions); err != nil {
			return nil, err
		}
		return service, nil
	}

	actions := []*models.Action{}
	if err := store.Load(storage.RecordActions, &actions); err != nil {
		return nil, err
	}
	service.actions = actions
	return service, nil
}

// List 返回全部按键
func (s *ActionService) List() []*models.Action {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*models.Action, len(s.actions))
	copy(result, s.actions)
	return result
}

// Get 按ID获取按键
func (s *ActionService) Get(id string) (*models.Action, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, a := range s.actions {
		if a.ID == id {
			return a, nil
		}
	}
	return nil, apperrors.NewNotFoundError("按鍵不存在: "+id, nil)
}

// Save 新建或更新按键，名称为必填项
func (s *ActionService) Save(action *models.Action) (*models.Action, error) {
	action.Label = strings.TrimSpace(action.Label)
	action.Prompt = strings.TrimSpace(action.Prompt)

	if action.Label == "" {
		return nil, apperrors.NewValidationError("請填入按鍵名稱", nil)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if action.ID == "" {
		action.ID = uuid.NewString()
		s.actions = append(s.actions, action)
	} else {
		found := false
		for i, a := range s.actions {
			if a.ID == action.ID {
				s.actions[i] = action
				found = true
				break
			}
		}
		if !found {
			s.actions = append(s.actions, action)
		}
	}

	if err := s.store.Save(storage.RecordActions, s.actions); err != nil {
		return nil, err
	}
	return action, nil
}

// Delete 删除按键
func (s *ActionService) Delete(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i, a := range s.actions {
		if a.ID == id {
			s.actions = append(s.actions[:i], s.actions[i+1:]...)
			return s.store.Save(storage.RecordActions, s.actions)
		}
	}
	return apperrors.NewNotFoundError("按鍵不存在: "+id, nil)
}
