// internal/services/chat_service_test.go
package services

import (
	"context"
	"strings"
	"sync"
	"testing"

	apperrors "github.com/charaverse/charachat/internal/errors"
	"github.com/charaverse/charachat/internal/llm"
	"github.com/charaverse/charachat/internal/models"
	"github.com/charaverse/charachat/internal/storage"
)

// stubGateway 可编程的模型网关替身
type stubGateway struct {
	text string
	err  error

	mu            sync.Mutex
	calls         int
	lastMessages  []llm.ChatMessage
	lastMaxTokens int

	// 非nil时调用会阻塞：先向started发信号，再等待release
	started chan struct{}
	release chan struct{}
}

func (g *stubGateway) ChatCompletion(ctx context.Context, messages []llm.ChatMessage, maxTokens int, streaming bool, sink StreamSink) (string, error) {
	g.mu.Lock()
	g.calls++
	g.lastMessages = messages
	g.lastMaxTokens = maxTokens
	g.mu.Unlock()

	if g.started != nil {
		g.started <- struct{}{}
		<-g.release
	}
	return g.text, g.err
}

type chatFixture struct {
	chat       *ChatService
	characters *CharacterService
	sessions   *SessionService
	store      *storage.RecordStore
	charID     string
	gateway    *stubGateway
}

func newChatFixture(t *testing.T, gateway *stubGateway) *chatFixture {
	t.Helper()

	store, err := storage.NewRecordStore(t.TempDir())
	if err != nil {
		t.Fatalf("创建记录存储失败: %v", err)
	}

	settings, err := NewSettingsService(store)
	if err != nil {
		t.Fatalf("创建设置服务失败: %v", err)
	}
	characters, err := NewCharacterService(store)
	if err != nil {
		t.Fatalf("创建角色服务失败: %v", err)
	}
	actions, err := NewActionService(store)
	if err != nil {
		t.Fatalf("创建按键服务失败: %v", err)
	}
	sessions, err := NewSessionService(store)
	if err != nil {
		t.Fatalf("创建会话服务失败: %v", err)
	}

	character, err := characters.Save(&models.Character{Name: "Aria", Persona: "warm mentor"})
	if err != nil {
		t.Fatalf("创建角色失败: %v", err)
	}

	chat := NewChatService(characters, actions, sessions, settings, gateway, nil)
	return &chatFixture{
		chat:       chat,
		characters: characters,
		sessions:   sessions,
		store:      store,
		charID:     character.ID,
		gateway:    gateway,
	}
}

// TestSendMessageSuccess 成功回合：两条消息入会话并落盘
func TestSendMessageSuccess(t *testing.T) {
	fx := newChatFixture(t, &stubGateway{text: "「很高興見到你。」"})

	result, err := fx.chat.SendMessage(context.Background(), fx.charID, "  你好  ", "")
	if err != nil {
		t.Fatalf("SendMessage失败: %v", err)
	}
	if result.Failed {
		t.Fatal("成功回合不应标记失败")
	}
	if result.UserMessage.Content != "你好" {
		t.Fatalf("用户消息应为去空白后的输入, got %q", result.UserMessage.Content)
	}
	if result.AssistantMessage.Content != "「很高興見到你。」" {
		t.Fatalf("助手消息内容错误: %q", result.AssistantMessage.Content)
	}
	if fx.gateway.lastMaxTokens != 1400 {
		t.Fatalf("生成轮token预算应为1400, got %d", fx.gateway.lastMaxTokens)
	}

	persisted := reloadSessions(t, fx.store)[fx.charID]
	if len(persisted.Messages) != 2 {
		t.Fatalf("会话应包含2条消息, got %d", len(persisted.Messages))
	}
	if persisted.Messages[0].Role != models.RoleUser || persisted.Messages[1].Role != models.RoleAssistant {
		t.Fatal("消息角色顺序错误")
	}
}

// TestSendMessageFailurePersists 失败回合仍成为持久可见的聊天记录
// 场景：正向关键词输入 + 传输失败 → 好感度50→52，会话落盘
func TestSendMessageFailurePersists(t *testing.T) {
	fx := newChatFixture(t, &stubGateway{
		err: apperrors.NewTransportError("連線逾時", nil),
	})

	result, err := fx.chat.SendMessage(context.Background(), fx.charID, "謝謝你的陪伴", "甜蜜")
	if err != nil {
		t.Fatalf("失败回合不应上抛错误: %v", err)
	}
	if !result.Failed {
		t.Fatal("应标记回合失败")
	}
	if !strings.HasPrefix(result.AssistantMessage.Content, "[錯誤] ") {
		t.Fatalf("助手消息应带错误前缀: %q", result.AssistantMessage.Content)
	}
	if !strings.Contains(result.AssistantMessage.Content, "連線逾時") {
		t.Fatalf("错误消息应包含失败原因: %q", result.AssistantMessage.Content)
	}
	if result.Affection != 52 {
		t.Fatalf("正向关键词应使好感度变为52, got %d", result.Affection)
	}

	persisted := reloadSessions(t, fx.store)[fx.charID]
	if len(persisted.Messages) != 2 {
		t.Fatalf("失败回合也应持久化2条消息, got %d", len(persisted.Messages))
	}
	if persisted.Affection != 52 {
		t.Fatalf("好感度应已落盘, got %d", persisted.Affection)
	}
}

// TestSendMessageEmptyInput 空输入为无操作
func TestSendMessageEmptyInput(t *testing.T) {
	fx := newChatFixture(t, &stubGateway{text: "不應被調用"})

	result, err := fx.chat.SendMessage(context.Background(), fx.charID, "   ", "甜蜜")
	if err != nil {
		t.Fatalf("空输入不应报错: %v", err)
	}
	if result != nil {
		t.Fatal("空输入应为无操作")
	}
	if fx.gateway.calls != 0 {
		t.Fatal("空输入不应调用模型")
	}
}

// TestSendMessageUnknownCharacter 未选择角色时中止
func TestSendMessageUnknownCharacter(t *testing.T) {
	fx := newChatFixture(t, &stubGateway{})

	_, err := fx.chat.SendMessage(context.Background(), "ghost", "嗨", "")
	if !apperrors.IsNotFoundError(err) {
		t.Fatalf("应返回未找到错误, got %v", err)
	}
}

// TestSendMessageHistoryWindow 组装的消息列表为系统指令+最近10条
func TestSendMessageHistoryWindow(t *testing.T) {
	fx := newChatFixture(t, &stubGateway{text: "回覆"})

	for i := 0; i < 14; i++ {
		fx.sessions.AppendMessage(fx.charID, &models.Message{Role: models.RoleUser, Content: "舊訊息"})
	}

	if _, err := fx.chat.SendMessage(context.Background(), fx.charID, "新訊息", ""); err != nil {
		t.Fatalf("SendMessage失败: %v", err)
	}

	// 14旧消息+本轮用户消息=15，窗口取最近10，另加系统指令
	if len(fx.gateway.lastMessages) != 11 {
		t.Fatalf("发送的消息列表应为11条, got %d", len(fx.gateway.lastMessages))
	}
	if fx.gateway.lastMessages[0].Role != models.RoleSystem {
		t.Fatal("首条应为系统指令")
	}
	last := fx.gateway.lastMessages[len(fx.gateway.lastMessages)-1]
	if last.Role != models.RoleUser || last.Content != "新訊息" {
		t.Fatalf("本轮用户消息应在窗口末尾: %+v", last)
	}
}

// TestSendMessageSingleFlight 同一角色的在途回合未定稿前拒绝新请求
func TestSendMessageSingleFlight(t *testing.T) {
	gateway := &stubGateway{
		text:    "回覆",
		started: make(chan struct{}, 1),
		release: make(chan struct{}),
	}
	fx := newChatFixture(t, gateway)

	done := make(chan error, 1)
	go func() {
		_, err := fx.chat.SendMessage(context.Background(), fx.charID, "第一輪", "")
		done <- err
	}()

	<-gateway.started // 第一轮已进入模型调用

	_, err := fx.chat.SendMessage(context.Background(), fx.charID, "第二輪", "")
	if !apperrors.IsConflictError(err) {
		t.Fatalf("在途回合期间应返回冲突错误, got %v", err)
	}

	close(gateway.release)
	if err := <-done; err != nil {
		t.Fatalf("第一轮应正常完成: %v", err)
	}
}

// TestSendMessageConcurrentTurns 不同角色的回合可并发执行，状态与落盘保持一致
// 每轮的消息追加、定稿与好感度调整都会与另一角色的整表落盘并发发生
func TestSendMessageConcurrentTurns(t *testing.T) {
	fx := newChatFixture(t, &stubGateway{text: "「回覆。」"})

	second, err := fx.characters.Save(&models.Character{Name: "Mira", Persona: "quiet artist"})
	if err != nil {
		t.Fatalf("创建第二个角色失败: %v", err)
	}

	const turns = 25
	var wg sync.WaitGroup
	for _, id := range []string{fx.charID, second.ID} {
		id := id
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < turns; i++ {
				if _, err := fx.chat.SendMessage(context.Background(), id, "併發訊息", ""); err != nil {
					t.Errorf("并发回合失败 character=%s: %v", id, err)
					return
				}
			}
		}()
	}
	wg.Wait()

	persisted := reloadSessions(t, fx.store)
	for _, id := range []string{fx.charID, second.ID} {
		if got := len(persisted[id].Messages); got != turns*2 {
			t.Fatalf("角色%s应落盘%d条消息, got %d", id, turns*2, got)
		}
	}
}

// TestRemoveCharacterReleasesTurnLock 删除角色时释放其回合锁
func TestRemoveCharacterReleasesTurnLock(t *testing.T) {
	fx := newChatFixture(t, &stubGateway{text: "「回覆。」"})

	if _, err := fx.chat.SendMessage(context.Background(), fx.charID, "嗨", ""); err != nil {
		t.Fatalf("SendMessage失败: %v", err)
	}
	if _, exists := fx.chat.turnLocks.Load(fx.charID); !exists {
		t.Fatal("回合后应存在回合锁")
	}

	if err := fx.chat.RemoveCharacter(fx.charID); err != nil {
		t.Fatalf("RemoveCharacter失败: %v", err)
	}
	if _, exists := fx.chat.turnLocks.Load(fx.charID); exists {
		t.Fatal("删除角色后回合锁应被释放")
	}
	if _, err := fx.characters.Get(fx.charID); !apperrors.IsNotFoundError(err) {
		t.Fatalf("角色应已删除, got %v", err)
	}
}

// TestSummarizeMemoryAppends 摘要成功时换行追加到现有记忆
func TestSummarizeMemoryAppends(t *testing.T) {
	fx := newChatFixture(t, &stubGateway{text: "  玩家偏好雨天對話。  "})

	for i := 0; i < 10; i++ {
		fx.sessions.AppendMessage(fx.charID, &models.Message{Role: models.RoleUser, Content: "訊息"})
	}
	fx.sessions.SetMemory(fx.charID, "舊記憶")

	memory, err := fx.chat.SummarizeMemory(context.Background(), fx.charID)
	if err != nil {
		t.Fatalf("SummarizeMemory失败: %v", err)
	}
	if memory != "舊記憶\n玩家偏好雨天對話。" {
		t.Fatalf("记忆追加结果错误: %q", memory)
	}
	if fx.gateway.lastMaxTokens != 300 {
		t.Fatalf("记忆整理token预算应为300, got %d", fx.gateway.lastMaxTokens)
	}

	// 摘要请求为系统指令+用户提示两条
	if len(fx.gateway.lastMessages) != 2 {
		t.Fatalf("摘要请求应为2条消息, got %d", len(fx.gateway.lastMessages))
	}
	if !strings.Contains(fx.gateway.lastMessages[1].Content, "100～200字") {
		t.Fatalf("摘要提示词错误: %q", fx.gateway.lastMessages[1].Content)
	}

	persisted := reloadSessions(t, fx.store)[fx.charID]
	if persisted.Memory != memory {
		t.Fatal("新记忆应已落盘")
	}
}

// TestSummarizeMemoryFailureKeepsMemory 摘要失败时记忆保持不变
func TestSummarizeMemoryFailureKeepsMemory(t *testing.T) {
	fx := newChatFixture(t, &stubGateway{err: apperrors.NewConfigurationError("尚未設定 API Key")})

	fx.sessions.EnsureSession(fx.charID)
	fx.sessions.SetMemory(fx.charID, "舊記憶")

	if _, err := fx.chat.SummarizeMemory(context.Background(), fx.charID); err == nil {
		t.Fatal("摘要失败应上抛错误")
	}

	persisted := reloadSessions(t, fx.store)[fx.charID]
	if persisted.Memory != "舊記憶" {
		t.Fatalf("失败时记忆应保持不变, got %q", persisted.Memory)
	}
}

// TestUseOpener 开场白与通用兜底
func TestUseOpener(t *testing.T) {
	fx := newChatFixture(t, &stubGateway{})

	// 未设置开场白时使用通用开场
	msg, err := fx.chat.UseOpener(fx.charID)
	if err != nil {
		t.Fatalf("UseOpener失败: %v", err)
	}
	if !msg.Meta.Opener {
		t.Fatal("开场消息应带opener标记")
	}
	if !strings.Contains(msg.Content, "嗨，我是Aria") {
		t.Fatalf("通用开场应包含角色名: %q", msg.Content)
	}

	persisted := reloadSessions(t, fx.store)[fx.charID]
	if len(persisted.Messages) != 1 || persisted.Messages[0].Role != models.RoleAssistant {
		t.Fatal("开场消息应作为助手消息落盘")
	}
}
