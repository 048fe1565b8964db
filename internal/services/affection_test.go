// internal/services/affection_test.go
package services

import (
	"strings"
	"testing"

	"github.com/charaverse/charachat/internal/models"
)

// TestAdjustAffectionRules 各调整规则
func TestAdjustAffectionRules(t *testing.T) {
	longReply := strings.Repeat("好", 601)

	tests := []struct {
		name     string
		current  int
		userText string
		aiText   string
		expected int
	}{
		{"正向关键词+2", 50, "謝謝你的陪伴", "", 52},
		{"负向关键词-2", 50, "我很生氣", "", 48},
		{"正负抵消", 50, "謝謝，但我很難過", "", 50},
		{"长回复+1", 50, "今天如何", longReply, 51},
		{"正向加长回复", 50, "愛你", longReply, 53},
		{"无命中不变", 50, "今天天氣不錯", "短回覆", 50},
		{"600字整不加成", 50, "嗨", strings.Repeat("好", 600), 50},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := AdjustAffection(tt.current, tt.userText, tt.aiText)
			if got != tt.expected {
				t.Fatalf("AdjustAffection = %d, want %d", got, tt.expected)
			}
		})
	}
}

// TestAdjustAffectionSingleFirePerRule 同一规则多处命中只触发一次
func TestAdjustAffectionSingleFirePerRule(t *testing.T) {
	got := AdjustAffection(50, "謝謝謝謝，愛你，抱抱，辛苦了", "")
	if got != 52 {
		t.Fatalf("多关键词命中应只+2一次, got %d", got)
	}
}

// TestAdjustAffectionClamp 任意序列的调整结果都在[0,100]内
func TestAdjustAffectionClamp(t *testing.T) {
	affection := 99
	longReply := strings.Repeat("好", 601)
	for i := 0; i < 10; i++ {
		affection = AdjustAffection(affection, "謝謝", longReply)
		if affection < models.AffectionMin || affection > models.AffectionMax {
			t.Fatalf("好感度越界: %d", affection)
		}
	}
	if affection != 100 {
		t.Fatalf("正向序列应钳制在100, got %d", affection)
	}

	affection = 1
	for i := 0; i < 10; i++ {
		affection = AdjustAffection(affection, "討厭，走開", "")
		if affection < models.AffectionMin || affection > models.AffectionMax {
			t.Fatalf("好感度越界: %d", affection)
		}
	}
	if affection != 0 {
		t.Fatalf("负向序列应钳制在0, got %d", affection)
	}
}
