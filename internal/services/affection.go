// internal/services/affection.go
package services

import (
	"strings"
	"unicode/utf8"

	"github.com/charaverse/charachat/internal/models"
)

// 好感度启发式的关键词表与阈值
var (
	positiveKeywords = []string{"謝謝", "喜歡你", "抱抱", "可愛", "溫柔", "辛苦了", "愛你"}
	negativeKeywords = []string{"生氣", "討厭", "走開", "笨蛋", "哭", "難過", "冷淡"}
)

// 回复超过该字数视为长回复
const longReplyRunes = 600

// AdjustAffection 根据本轮对话调整好感度
// 规则各自独立且每轮至多触发一次（同一文本多处命中不叠加），结果钳制到[0,100]
func AdjustAffection(current int, userText, assistantText string) int {
	delta := 0
	if containsAny(userText, positiveKeywords) {
		delta += 2
	}
	if containsAny(userText, negativeKeywords) {
		delta -= 2
	}
	if utf8.RuneCountInString(assistantText) > longReplyRunes {
		delta++
	}
	return models.ClampAffection(current + delta)
}

func containsAny(text string, keywords []string) bool {
	for _, keyword := range keywords {
		if strings.Contains(text, keyword) {
			return true
		}
	}
	return false
}
