// internal/services/prompt_builder.go
package services

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/charaverse/charachat/internal/llm"
	"github.com/charaverse/charachat/internal/models"
)

// 送入模型的历史窗口长度（含刚追加的用户消息）
const historyWindow = 10

// 快捷按键在输入文本中的内联标记
var actionMarkerRe = regexp.MustCompile(`［按鍵：(.+?)］`)

// CollectActionHints 扫描输入中的按键标记并解析为情境加成子句
// 未匹配的标记降级为按名称发挥的兜底提示，永不使整轮失败
func CollectActionHints(input string, actions []*models.Action) string {
	matches := actionMarkerRe.FindAllStringSubmatch(input, -1)
	if len(matches) == 0 {
		return ""
	}

	prompts := make(map[string]string, len(actions))
	for _, a := range actions {
		prompts[a.Label] = a.Prompt
	}

	hints := make([]string, 0, len(matches))
	for _, m := range matches {
		label := m[1]
		if prompt, ok := prompts[label]; ok {
			hints = append(hints, prompt)
		} else {
			hints = append(hints, fmt.Sprintf("%s（依常識發揮）", label))
		}
	}

	return strings.Join(hints, "；")
}

// BuildSystemPrompt 构建本轮的系统指令
// 人设/规则/记忆缺失时替换为占位文本，指令结构保持稳定
func BuildSystemPrompt(character *models.Character, sess *models.Session, tone string, enforceMinLength bool, actionHints string) string {
	persona := character.Persona
	if persona == "" {
		persona = "（無）"
	}
	rules := character.Rules
	if rules == "" {
		rules = "（無）"
	}
	memory := sess.Memory
	if memory == "" {
		memory = "（暫無）"
	}

	lengthDirective := "每次輸出字數視情況調整，建議300–600字。"
	if enforceMinLength {
		lengthDirective = "每次輸出字數不少於500字（若不足，請補充內心戲、動作、細節）。"
	}

	lines := []string{
		"你是戀愛向角色扮演AI，使用「繁體中文小說體」。",
		"格式要求：以*斜體*描寫動作、心理與環境；對白使用「」；避免口語註解與列表格式。",
		lengthDirective,
		fmt.Sprintf("角色：%s。人設：%s。規則：%s。", character.Name, persona, rules),
		fmt.Sprintf("與玩家關係的長期記憶（可引用但不要逐字背誦）：%s。", memory),
		fmt.Sprintf("好感度（0–100）：%d。好感度越高越親密、越願意袒露心境，但仍需尊重界線。", sess.Affection),
		fmt.Sprintf("語氣偏好：%s。", tone),
	}
	if actionHints != "" {
		lines = append(lines, fmt.Sprintf("情境加成：%s", actionHints))
	}
	lines = append(lines, "避免輸出系統訊息或自述為AI。請自然沉浸，不要跳脫人物。")

	return strings.Join(lines, "\n")
}

// BuildChatMessages 组装发往模型的完整消息列表：
// 系统指令 + 最近historyWindow条历史（剥离元数据，角色原样保留）
func BuildChatMessages(character *models.Character, sess *models.Session, actions []*models.Action, input, tone string, enforceMinLength bool) []llm.ChatMessage {
	hints := CollectActionHints(input, actions)
	system := BuildSystemPrompt(character, sess, tone, enforceMinLength, hints)

	history := sess.Messages
	if len(history) > historyWindow {
		history = history[len(history)-historyWindow:]
	}

	messages := make([]llm.ChatMessage, 0, len(history)+1)
	messages = append(messages, llm.ChatMessage{Role: models.RoleSystem, Content: system})
	for _, m := range history {
		messages = append(messages, llm.ChatMessage{Role: m.Role, Content: m.Content})
	}

	return messages
}
