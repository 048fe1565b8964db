// internal/api/handlers.go
package api

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/charaverse/charachat/internal/models"
	"github.com/charaverse/charachat/internal/services"
)

// Handler 聚合全部API处理器
type Handler struct {
	Settings   *services.SettingsService
	Characters *services.CharacterService
	Actions    *services.ActionService
	Sessions   *services.SessionService
	Chat       *services.ChatService
	Export     *services.ExportService
}

// NewHandler 创建API处理器
func NewHandler(
	settings *services.SettingsService,
	characters *services.CharacterService,
	actions *services.ActionService,
	sessions *services.SessionService,
	chat *services.ChatService,
	export *services.ExportService,
) *Handler {
	return &Handler{
		Settings:   settings,
		Characters: characters,
		Actions:    actions,
		Sessions:   sessions,
		Chat:       chat,
		Export:     export,
	}
}

// ===============================
// 设置
// ===============================

// GetSettings 读取当前设置
func (h *Handler) GetSettings(c *gin.Context) {
	respondSuccess(c, h.Settings.Get())
}

// SaveSettings 整体覆盖设置
func (h *Handler) SaveSettings(c *gin.Context) {
	var settings models.Settings
	if err := c.ShouldBindJSON(&settings); err != nil {
		respondError(c, err, ErrorBadRequest)
		return
	}
	if err := h.Settings.Save(&settings); err != nil {
		respondError(c, err, ErrorLLMConfigInvalid)
		return
	}
	respondSuccess(c, h.Settings.Get(), "設定已儲存")
}

// ===============================
// 角色
// ===============================

// ListCharacters 角色列表
func (h *Handler) ListCharacters(c *gin.Context) {
	respondSuccess(c, h.Characters.List())
}

// GetCharacter 单个角色
func (h *Handler) GetCharacter(c *gin.Context) {
	character, err := h.Characters.Get(c.Param("id"))
	if err != nil {
		respondError(c, err, ErrorCharacterNotFound)
		return
	}
	respondSuccess(c, character)
}

// CreateCharacter 新建角色
func (h *Handler) CreateCharacter(c *gin.Context) {
	var character models.Character
	if err := c.ShouldBindJSON(&character); err != nil {
		respondError(c, err, ErrorBadRequest)
		return
	}
	character.ID = ""

	saved, err := h.Characters.Save(&character)
	if err != nil {
		respondError(c, err, ErrorCharacterInvalid)
		return
	}
	respondCreated(c, saved)
}

// UpdateCharacter 更新角色
func (h *Handler) UpdateCharacter(c *gin.Context) {
	var character models.Character
	if err := c.ShouldBindJSON(&character); err != nil {
		respondError(c, err, ErrorBadRequest)
		return
	}
	character.ID = c.Param("id")

	if _, err := h.Characters.Get(character.ID); err != nil {
		respondError(c, err, ErrorCharacterNotFound)
		return
	}
	saved, err := h.Characters.Save(&character)
	if err != nil {
		respondError(c, err, ErrorCharacterInvalid)
		return
	}
	respondSuccess(c, saved)
}

// DeleteCharacter 删除角色并释放回合锁（会话记录刻意保留）
func (h *Handler) DeleteCharacter(c *gin.Context) {
	if err := h.Chat.RemoveCharacter(c.Param("id")); err != nil {
		respondError(c, err, ErrorCharacterNotFound)
		return
	}
	respondSuccess(c, nil, "角色已刪除")
}

// ===============================
// 快捷按键
// ===============================

// ListActions 按键列表
func (h *Handler) ListActions(c *gin.Context) {
	respondSuccess(c, h.Actions.List())
}

// CreateAction 新建按键
func (h *Handler) CreateAction(c *gin.Context) {
	var action models.Action
	if err := c.ShouldBindJSON(&action); err != nil {
		respondError(c, err, ErrorBadRequest)
		return
	}
	action.ID = ""

	saved, err := h.Actions.Save(&action)
	if err != nil {
		respondError(c, err, ErrorActionInvalid)
		return
	}
	respondCreated(c, saved)
}

// UpdateAction 更新按键
func (h *Handler) UpdateAction(c *gin.Context) {
	var action models.Action
	if err := c.ShouldBindJSON(&action); err != nil {
		respondError(c, err, ErrorBadRequest)
		return
	}
	action.ID = c.Param("id")

	if _, err := h.Actions.Get(action.ID); err != nil {
		respondError(c, err, ErrorActionNotFound)
		return
	}
	saved, err := h.Actions.Save(&action)
	if err != nil {
		respondError(c, err, ErrorActionInvalid)
		return
	}
	respondSuccess(c, saved)
}

// DeleteAction 删除按键
func (h *Handler) DeleteAction(c *gin.Context) {
	if err := h.Actions.Delete(c.Param("id")); err != nil {
		respondError(c, err, ErrorActionNotFound)
		return
	}
	respondSuccess(c, nil, "按鍵已刪除")
}

// ===============================
// 会话
// ===============================

// GetSession 获取（必要时懒创建）角色会话
// 返回快照，序列化时不与在途回合的写入竞争
func (h *Handler) GetSession(c *gin.Context) {
	characterID := c.Param("id")
	if _, err := h.Characters.Get(characterID); err != nil {
		respondError(c, err, ErrorCharacterNotFound)
		return
	}
	sess, err := h.Sessions.SessionView(characterID)
	if err != nil {
		respondError(c, err, ErrorSessionNotFound)
		return
	}
	respondSuccess(c, sess)
}

// ClearSession 清空对话历史
func (h *Handler) ClearSession(c *gin.Context) {
	if err := h.Chat.ClearMessages(c.Param("id")); err != nil {
		respondError(c, err, ErrorSessionNotFound)
		return
	}
	respondSuccess(c, nil, "對話已清空")
}

// SaveMemory 手动保存记忆文本
func (h *Handler) SaveMemory(c *gin.Context) {
	var req struct {
		Memory string `json:"memory"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, err, ErrorBadRequest)
		return
	}
	if err := h.Sessions.SetMemory(c.Param("id"), req.Memory); err != nil {
		respondError(c, err, ErrorSessionNotFound)
		return
	}
	respondSuccess(c, nil, "記憶已儲存")
}

// SetAffection 手动调整好感度
func (h *Handler) SetAffection(c *gin.Context) {
	var req struct {
		Affection int `json:"affection"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, err, ErrorBadRequest)
		return
	}
	value, err := h.Sessions.SetAffection(c.Param("id"), req.Affection)
	if err != nil {
		respondError(c, err, ErrorSessionNotFound)
		return
	}
	respondSuccess(c, gin.H{"affection": value})
}

// UseOpener 以开场白开启对话
func (h *Handler) UseOpener(c *gin.Context) {
	msg, err := h.Chat.UseOpener(c.Param("id"))
	if err != nil {
		respondError(c, err, ErrorCharacterNotFound)
		return
	}
	respondSuccess(c, msg)
}

// ===============================
// 对话回合
// ===============================

// SendMessage 执行一轮对话
func (h *Handler) SendMessage(c *gin.Context) {
	var req struct {
		Message string `json:"message"`
		Tone    string `json:"tone"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, err, ErrorBadRequest)
		return
	}

	result, err := h.Chat.SendMessage(c.Request.Context(), c.Param("id"), req.Message, req.Tone)
	if err != nil {
		respondError(c, err, ErrorModelCallFailed)
		return
	}
	if result == nil {
		// 空输入按无操作处理
		respondSuccess(c, nil)
		return
	}
	respondSuccess(c, result)
}

// SummarizeMemory 把最近对话整理进长期记忆
func (h *Handler) SummarizeMemory(c *gin.Context) {
	memory, err := h.Chat.SummarizeMemory(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err, ErrorSummarizeFailed)
		return
	}
	respondSuccess(c, gin.H{"memory": memory})
}

// ===============================
// 导出
// ===============================

// ExportChat 导出会话快照并作为附件下载
func (h *Handler) ExportChat(c *gin.Context) {
	export, filename, err := h.Export.BuildExport(c.Param("id"))
	if err != nil {
		respondError(c, err, ErrorExportFailed)
		return
	}

	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	c.JSON(http.StatusOK, export)
}
