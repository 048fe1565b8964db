// internal/services/character_service.go
package services

import (
	"strings"
	"sync"

	"github.com/google/uuid"

	apperrors "github.com/charaverse/charachat/internal/errors"
	"github.com/charaverse/charachat/internal/models"
	"github.com/charaverse/charachat/internal/storage"
)

// CharacterService 处理角色的增删改查
type CharacterService struct {
	store *storage.RecordStore

	mu         sync.RWMutex
	characters []*models.Character
}

// NewCharacterService 创建角色服务并加载持久化记录
func NewCharacterService(store *storage.RecordStore) (*CharacterService, error) {
	characters := []*models.Character{}
	if err := store.Load(storage.RecordCharacters, &characters); err != nil {
		return nil, err
	}

	return &CharacterService{
		store:      store,
		characters: characters,
	}, nil
}

// List 返回全部角色
func (s *CharacterService) List() []*models.Character {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*models.Character, len(s.characters))
	copy(result, s.characters)
	return result
}

// Get 按ID获取角色
func (s *CharacterService) Get(id string) (*models.Character, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, c := range s.characters {
		if c.ID == id {
			return c, nil
		}
	}
	return nil, apperrors.NewNotFoundError("角色不存在: "+id, nil)
}

// Save 新建或更新角色，名称为必填项
func (s *CharacterService) Save(character *models.Character) (*models.Character, error) {
	character.Name = strings.TrimSpace(character.Name)
	character.Persona = strings.TrimSpace(character.Persona)
	character.Opener = strings.TrimSpace(character.Opener)
	character.Rules = strings.TrimSpace(character.Rules)

	if character.Name == "" {
		return nil, apperrors.NewValidationError("請輸入角色名稱", nil)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if character.ID == "" {
		character.ID = uuid.NewString()
		s.characters = append(s.characters, character)
	} else {
		found := false
		for i, c := range s.characters {
			if c.ID == character.ID {
				s.characters[i] = character
				found = true
				break
			}
		}
		if !found {
			s.characters = append(s.characters, character)
		}
	}

	if err := s.store.Save(storage.RecordCharacters, s.characters); err != nil {
		return nil, err
	}
	return character, nil
}

// Delete 删除角色
// 关联会话记录按独立键保存，此处刻意保留（便于后续恢复）
func (s *CharacterService) Delete(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i, c := range s.characters {
		if c.ID == id {
			s.characters = append(s.characters[:i], s.characters[i+1:]...)
			return s.store.Save(storage.RecordCharacters, s.characters)
		}
	}
	return apperrors.NewNotFoundError("角色不存在: "+id, nil)
}
