// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package mockserver

import (
	"fmt"
	"strings"

	"github.com/neulbom/neulbom-cli/internal/backend"
	"github.com/neulbom/neulbom-cli/internal/util"
)

// crisisKeywords trigger the crisis flag when found in a message.
var crisisKeywords = []string{
	"자살", "죽고 싶", "끝내고 싶", "죽을래", "죽겠",
	"학대", "폭행", "폭력", "구타",
	"절망", "희망 없", "의미 없",
	"계획", "유서", "작별",
}

// CrisisLevel grades how many warning signs a message carries.
type CrisisLevel int

const (
	CrisisNone CrisisLevel = iota
	CrisisLow
	CrisisMedium
	CrisisHigh
)

// AnalyzeCrisis counts crisis keywords in text.
func AnalyzeCrisis(text string) CrisisLevel {
	lower := strings.ToLower(text)
	n := 0
	for _, kw := range crisisKeywords {
		if strings.Contains(lower, kw) {
			n++
		}
	}
	switch {
	case n >= 3:
		return CrisisHigh
	case n == 2:
		return CrisisMedium
	case n == 1:
		return CrisisLow
	default:
		return CrisisNone
	}
}

// crisisInfo is attached to every crisis reply.
func crisisInfo() *backend.CrisisInfo {
	return &backend.CrisisInfo{
		Phone:   backend.CrisisHotline,
		Message: "전문가의 도움이 필요해 보여요. 보건복지콜센터(129)로 연락해보세요.",
	}
}

// composeReply returns the canned reply for a message.
func composeReply(message string, level CrisisLevel, turns int) string {
	switch level {
	case CrisisHigh:
		return "지금 정말 힘든 상황이시군요. 혼자 견디기 어려운 상황이라면 즉시 전문가의 도움이 필요해요. " +
			"보건복지콜센터(129)로 연락하시거나, 주변에 도움을 요청하는 것도 용기 있는 행동이에요. 당신은 혼자가 아니에요."
	case CrisisMedium:
		return "지금 많이 힘드시는 것 같아요. 이런 감정을 느끼는 것은 당연해요. " +
			"혼자 견디기 어려운 상황이라면 전문가의 도움이 필요할 수 있어요."
	}

	quoted := util.TruncateRunes(util.SingleLine(strings.TrimSpace(message)), 40)
	if turns == 0 {
		return fmt.Sprintf("이야기해 주셔서 고마워요. \"%s\"에 대해 조금 더 들려주실 수 있을까요?", quoted)
	}
	return fmt.Sprintf("그랬군요. \"%s\"라고 느끼셨을 때 어떤 생각이 가장 먼저 들었나요?", quoted)
}
