package session

import (
	"fmt"
	"math"
	"sort"
	"strings"
)

// Match 是一次提交的评分结果。
type Match struct {
	Matched int
	Total   int
}

// IsCorrect 只有当某阶段的全部特征都被正确归属时才为 true。
func (m Match) IsCorrect() bool {
	return m.Total > 0 && m.Matched == m.Total
}

// RoundScore 返回 round(matched/total*10)，total 为 0 时返回 0。
// 这个值既是实时反馈，也是计入玩家总分的分数。
func (m Match) RoundScore() int {
	if m.Total == 0 {
		return 0
	}
	return int(math.Round(float64(m.Matched) / float64(m.Total) * 10))
}

// WineRef 返回客户端用来把特征归属到某款酒的标签。
func WineRef(number int) string {
	return fmt.Sprintf("Wine %d", number)
}

// Score 统计 selections 中被归属到 wineNumber 且属于标准答案的特征数量。
func Score(correct []string, selections map[string]string, wineNumber int) Match {
	set := make(map[string]struct{}, len(correct))
	for _, c := range correct {
		set[c] = struct{}{}
	}
	ref := WineRef(wineNumber)
	matched := 0
	for characteristic, wine := range selections {
		if strings.TrimSpace(wine) != ref {
			continue
		}
		if _, ok := set[characteristic]; ok {
			matched++
		}
	}
	return Match{Matched: matched, Total: len(set)}
}

// joinSelections 把归属到 wineNumber 的特征按字母序用逗号拼接。
func joinSelections(selections map[string]string, wineNumber int) string {
	ref := WineRef(wineNumber)
	picked := make([]string, 0, len(selections))
	for characteristic, wine := range selections {
		if strings.TrimSpace(wine) == ref {
			picked = append(picked, characteristic)
		}
	}
	sort.Strings(picked)
	return strings.Join(picked, ",")
}
