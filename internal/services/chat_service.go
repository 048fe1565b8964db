// internal/services/chat_service.go
package services

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	apperrors "github.com/charaverse/charachat/internal/errors"
	"github.com/charaverse/charachat/internal/llm"
	"github.com/charaverse/charachat/internal/models"
	"github.com/charaverse/charachat/internal/utils"
)

// token预算：生成轮与记忆整理互相独立
const (
	chatMaxTokens   = 1400
	memoryMaxTokens = 300
)

// 记忆整理读取的末尾消息条数
const summaryWindow = 8

// 失败轮写入聊天记录的错误前缀
const errorMarker = "[錯誤] "

// 默认语气
const defaultTone = "甜蜜"

// ModelGateway 屏蔽模型调用细节，便于离线测试回合逻辑
type ModelGateway interface {
	ChatCompletion(ctx context.Context, messages []llm.ChatMessage, maxTokens int, streaming bool, sink StreamSink) (string, error)
}

// RenderNotifier 渲染层回调：气泡追加、占位、最终替换等
type RenderNotifier interface {
	MessageAppended(characterID string, msg *models.Message)
	PlaceholderShown(characterID string, msg *models.Message)
	MessageFinalized(characterID string, msg *models.Message)
	SessionCleared(characterID string)
	StreamSink(characterID string) StreamSink
}

// NoopNotifier 无渲染层时的空实现
type NoopNotifier struct{}

func (NoopNotifier) MessageAppended(string, *models.Message)  {}
func (NoopNotifier) PlaceholderShown(string, *models.Message) {}
func (NoopNotifier) MessageFinalized(string, *models.Message) {}
func (NoopNotifier) SessionCleared(string)                    {}
func (NoopNotifier) StreamSink(string) StreamSink             { return nil }

// TurnResult 一轮对话的结果
type TurnResult struct {
	UserMessage      *models.Message `json:"user_message"`
	AssistantMessage *models.Message `json:"assistant_message"`
	Affection        int             `json:"affection"`
	Failed           bool            `json:"failed"`
}

// ChatService 驱动完整的对话回合
type ChatService struct {
	Characters *CharacterService
	Actions    *ActionService
	Sessions   *SessionService
	Settings   *SettingsService
	Gateway    ModelGateway
	Notifier   RenderNotifier

	logger *utils.Logger

	// 每角色至多一轮在途对话 characterID -> *sync.Mutex
	turnLocks sync.Map
}

// NewChatService 创建对话服务
func NewChatService(characters *CharacterService, actions *ActionService, sessions *SessionService, settings *SettingsService, gateway ModelGateway, notifier RenderNotifier) *ChatService {
	if notifier == nil {
		notifier = NoopNotifier{}
	}
	return &ChatService{
		Characters: characters,
		Actions:    actions,
		Sessions:   sessions,
		Settings:   settings,
		Gateway:    gateway,
		Notifier:   notifier,
		logger:     utils.GetLogger(),
	}
}

func (s *ChatService) turnLock(characterID string) *sync.Mutex {
	value, _ := s.turnLocks.LoadOrStore(characterID, &sync.Mutex{})
	return value.(*sync.Mutex)
}

// SendMessage 执行一轮对话：
// 记录用户消息 → 组装提示词 → 请求模型（占位消息流式更新）→ 定稿 → 落盘 → 好感度调整 → 再次落盘
// 模型调用失败时占位消息定稿为带错误前缀的文本，回合仍然成立
func (s *ChatService) SendMessage(ctx context.Context, characterID, input, tone string) (*TurnResult, error) {
	character, err := s.Characters.Get(characterID)
	if err != nil {
		return nil, apperrors.NewNotFoundError("請先建立或選擇角色", err)
	}

	input = strings.TrimSpace(input)
	if input == "" {
		return nil, nil
	}

	if tone == "" {
		tone = defaultTone
	}

	// 同一角色的在途回合未定稿前拒绝新请求，避免消息交错
	lock := s.turnLock(characterID)
	if !lock.TryLock() {
		return nil, apperrors.NewConflictError("上一輪對話尚未完成", nil)
	}
	defer lock.Unlock()

	settings := s.Settings.Get()

	// 记录用户消息并立即渲染
	userMsg := &models.Message{
		Role:    models.RoleUser,
		Content: input,
		Meta:    models.MessageMeta{Time: models.DisplayTime(time.Now())},
	}
	if err := s.Sessions.AppendMessage(characterID, userMsg); err != nil {
		return nil, err
	}
	s.Notifier.MessageAppended(characterID, userMsg)

	// 以会话快照组装提示词（刚追加的用户消息位于历史窗口内）
	view, err := s.Sessions.SessionView(characterID)
	if err != nil {
		return nil, err
	}
	messages := BuildChatMessages(character, view, s.Actions.List(), input, tone, settings.Force500)

	// 请求发出前先追加空的占位助手消息
	placeholder := &models.Message{
		Role: models.RoleAssistant,
		Meta: models.MessageMeta{Time: models.DisplayTime(time.Now())},
	}
	if err := s.Sessions.AppendMessage(characterID, placeholder); err != nil {
		return nil, err
	}
	s.Notifier.PlaceholderShown(characterID, placeholder)

	text, callErr := s.Gateway.ChatCompletion(ctx, messages, chatMaxTokens, settings.Streaming, s.Notifier.StreamSink(characterID))
	content := text
	if callErr != nil {
		// 失败轮同样成为持久、可见的聊天记录，不重试不丢弃
		content = errorMarker + callErr.Error()
		s.logger.Errorf("模型調用失敗 character=%s: %v", characterID, callErr)
	}

	// 无论成败都定稿并落盘
	if err := s.Sessions.FinalizeMessage(characterID, placeholder, content); err != nil {
		return nil, err
	}
	s.Notifier.MessageFinalized(characterID, placeholder)

	// 好感度启发式，读改写同锁完成后再次落盘
	affection, err := s.Sessions.UpdateAffection(characterID, func(current int) int {
		return AdjustAffection(current, input, text)
	})
	if err != nil {
		return nil, err
	}

	return &TurnResult{
		UserMessage:      userMsg,
		AssistantMessage: placeholder,
		Affection:        affection,
		Failed:           callErr != nil,
	}, nil
}

// SummarizeMemory 把最近的对话整理进长期记忆
// 成功时换行追加到现有记忆并落盘；失败时记忆保持不变并上抛错误
func (s *ChatService) SummarizeMemory(ctx context.Context, characterID string) (string, error) {
	if _, err := s.Characters.Get(characterID); err != nil {
		return "", err
	}
	view, err := s.Sessions.SessionView(characterID)
	if err != nil {
		return "", err
	}

	history := view.Messages
	if len(history) > summaryWindow {
		history = history[len(history)-summaryWindow:]
	}

	lines := make([]string, 0, len(history))
	for _, m := range history {
		speaker := "角色"
		if m.Role == models.RoleUser {
			speaker = "玩家"
		}
		lines = append(lines, fmt.Sprintf("%s：%s", speaker, m.Content))
	}

	prompt := "請將以下對話整理成「角色對玩家的長期記憶」的摘要（100～200字），保留偏好、關係變化、承諾、禁忌與未完成的目標：\n" + strings.Join(lines, "\n")

	messages := []llm.ChatMessage{
		{Role: models.RoleSystem, Content: "你是擅長提煉關係記憶的助理。"},
		{Role: models.RoleUser, Content: prompt},
	}

	settings := s.Settings.Get()
	summary, err := s.Gateway.ChatCompletion(ctx, messages, memoryMaxTokens, settings.Streaming, nil)
	if err != nil {
		return "", err
	}

	return s.Sessions.AppendMemory(characterID, summary)
}

// UseOpener 以角色的开场白开启对话，未设置时使用通用开场
func (s *ChatService) UseOpener(characterID string) (*models.Message, error) {
	character, err := s.Characters.Get(characterID)
	if err != nil {
		return nil, apperrors.NewNotFoundError("請先建立或選擇角色", err)
	}

	content := strings.TrimSpace(character.Opener)
	if content == "" {
		content = fmt.Sprintf("*靜靜地注視著你，露出一個微妙的笑。*\n「嗨，我是%s。」", character.Name)
	}

	msg := &models.Message{
		Role:    models.RoleAssistant,
		Content: content,
		Meta:    models.MessageMeta{Time: models.DisplayTime(time.Now()), Opener: true},
	}
	if err := s.Sessions.AppendMessage(characterID, msg); err != nil {
		return nil, err
	}
	if err := s.Sessions.Persist(); err != nil {
		return nil, err
	}
	s.Notifier.MessageAppended(characterID, msg)
	return msg, nil
}

// RemoveCharacter 删除角色并释放其回合锁
func (s *ChatService) RemoveCharacter(characterID string) error {
	if err := s.Characters.Delete(characterID); err != nil {
		return err
	}
	s.turnLocks.Delete(characterID)
	return nil
}

// ClearMessages 清空当前对话
func (s *ChatService) ClearMessages(characterID string) error {
	if err := s.Sessions.ClearMessages(characterID); err != nil {
		return err
	}
	s.Notifier.SessionCleared(characterID)
	return nil
}
