// internal/services/session_service.go
package services

import (
	"strings"
	"sync"

	apperrors "github.com/charaverse/charachat/internal/errors"
	"github.com/charaverse/charachat/internal/models"
	"github.com/charaverse/charachat/internal/storage"
)

// SessionService 是会话状态的唯一写入方
// 所有读写都在服务锁内进行：落盘会序列化整个会话表，
// 任何绕过锁的直接修改都会与并发落盘产生数据竞争
type SessionService struct {
	store *storage.RecordStore

	mu       sync.Mutex
	sessions map[string]*models.Session // characterID -> Session
}

// NewSessionService 创建会话服务并加载持久化记录
func NewSessionService(store *storage.RecordStore) (*SessionService, error) {
	sessions := map[string]*models.Session{}
	if err := store.Load(storage.RecordSessions, &sessions); err != nil {
		return nil, err
	}

	return &SessionService{
		store:    store,
		sessions: sessions,
	}, nil
}

// ensureLocked 返回已有会话，不存在时懒创建并立即落盘。调用方必须持锁
func (s *SessionService) ensureLocked(characterID string) (*models.Session, error) {
	if sess, exists := s.sessions[characterID]; exists {
		if sess.Messages == nil {
			sess.Messages = []*models.Message{}
		}
		return sess, nil
	}

	sess := models.NewSession()
	s.sessions[characterID] = sess
	if err := s.persistLocked(); err != nil {
		return nil, err
	}
	return sess, nil
}

// EnsureSession 返回已有会话，不存在时懒创建并立即落盘。幂等
// 返回的是内部状态，调用方不得直接修改，变更一律走本服务的方法
func (s *SessionService) EnsureSession(characterID string) (*models.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ensureLocked(characterID)
}

// SessionView 返回会话的深拷贝快照，不存在时懒创建
// 快照可在锁外安全读取与序列化，修改快照不影响内部状态
func (s *SessionService) SessionView(characterID string) (*models.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, err := s.ensureLocked(characterID)
	if err != nil {
		return nil, err
	}

	view := &models.Session{
		Messages:  make([]*models.Message, len(sess.Messages)),
		Memory:    sess.Memory,
		Affection: sess.Affection,
	}
	for i, m := range sess.Messages {
		copied := *m
		view.Messages[i] = &copied
	}
	return view, nil
}

// Get 返回会话，不存在时报错
func (s *SessionService) Get(characterID string) (*models.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, exists := s.sessions[characterID]
	if !exists {
		return nil, apperrors.NewNotFoundError("會話不存在: "+characterID, nil)
	}
	return sess, nil
}

// AppendMessage 追加消息，会话不存在时懒创建
// 消息本身不落盘，由调用方决定批量时机
func (s *SessionService) AppendMessage(characterID string, msg *models.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, err := s.ensureLocked(characterID)
	if err != nil {
		return err
	}
	sess.Messages = append(sess.Messages, msg)
	return nil
}

// FinalizeMessage 为已追加的消息写入定稿内容并落盘
func (s *SessionService) FinalizeMessage(characterID string, msg *models.Message, content string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.sessions[characterID]; !exists {
		return apperrors.NewNotFoundError("會話不存在: "+characterID, nil)
	}
	msg.Content = content
	return s.persistLocked()
}

// SetMemory 更新记忆文本并落盘
func (s *SessionService) SetMemory(characterID, text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, exists := s.sessions[characterID]
	if !exists {
		return apperrors.NewNotFoundError("會話不存在: "+characterID, nil)
	}
	sess.Memory = text
	return s.persistLocked()
}

// AppendMemory 把新片段换行追加到现有记忆并落盘，返回追加后的全文
func (s *SessionService) AppendMemory(characterID, text string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, exists := s.sessions[characterID]
	if !exists {
		return "", apperrors.NewNotFoundError("會話不存在: "+characterID, nil)
	}

	memory := strings.TrimSpace(text)
	if existing := strings.TrimSpace(sess.Memory); existing != "" {
		memory = existing + "\n" + memory
	}
	sess.Memory = memory
	return memory, s.persistLocked()
}

// SetAffection 更新好感度（钳制到[0,100]）并落盘
func (s *SessionService) SetAffection(characterID string, value int) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, exists := s.sessions[characterID]
	if !exists {
		return 0, apperrors.NewNotFoundError("會話不存在: "+characterID, nil)
	}
	sess.Affection = models.ClampAffection(value)
	return sess.Affection, s.persistLocked()
}

// UpdateAffection 以当前值计算新好感度（钳制到[0,100]）并落盘
// 读取与写入在同一临界区内，避免并发回合间的读改写竞争
func (s *SessionService) UpdateAffection(characterID string, update func(current int) int) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, exists := s.sessions[characterID]
	if !exists {
		return 0, apperrors.NewNotFoundError("會話不存在: "+characterID, nil)
	}
	sess.Affection = models.ClampAffection(update(sess.Affection))
	return sess.Affection, s.persistLocked()
}

// ClearMessages 清空消息历史并落盘，记忆与好感度保留
func (s *SessionService) ClearMessages(characterID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, exists := s.sessions[characterID]
	if !exists {
		return apperrors.NewNotFoundError("會話不存在: "+characterID, nil)
	}
	sess.Messages = []*models.Message{}
	return s.persistLocked()
}

// Persist 将全部会话整体落盘
func (s *SessionService) Persist() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.persistLocked()
}

func (s *SessionService) persistLocked() error {
	return s.store.Save(storage.RecordSessions, s.sessions)
}
