package service

import (
	"context"
	"fmt"
	"hash/fnv"
	"sort"
	"strings"

	"wine-tasting/internal/domain"
	"wine-tasting/internal/infra/ai"
)

// 本地生成时使用的特征词表
var fallbackVocabulary = map[domain.Phase][]string{
	domain.PhaseVisual: {
		"Pale straw", "Lemon", "Gold", "Amber", "Salmon pink",
		"Ruby", "Garnet", "Purple", "Deep", "Brick rim",
		"Clear", "Legs", "Watery rim", "Brilliant",
	},
	domain.PhaseSmell: {
		"Citrus", "Green apple", "Peach", "Tropical fruit", "Red cherry",
		"Strawberry", "Blackcurrant", "Plum", "Vanilla", "Oak",
		"Floral", "Pepper", "Earthy", "Toast", "Honey", "Herbaceous",
	},
	domain.PhaseTaste: {
		"Dry", "Off-dry", "Sweet", "High acidity", "Crisp",
		"Soft tannins", "Firm tannins", "Light body", "Full body", "Creamy",
		"Mineral", "Spicy", "Long finish", "Short finish",
	},
}

// FallbackGenerator 在 AI 不可用时根据酒名和年份确定性地生成特征。
// 相同的输入总是得到相同的结果。
type FallbackGenerator struct{}

// Generate 实现 CharacteristicGenerator
func (FallbackGenerator) Generate(_ context.Context, wines []ai.WineInput, difficulty domain.Difficulty) (*ai.Generation, error) {
	count := difficulty.CharacteristicCount()
	gen := &ai.Generation{Wines: make([]domain.Characteristics, 0, len(wines))}
	for _, w := range wines {
		seed := fmt.Sprintf("%s|%d", strings.ToLower(strings.TrimSpace(w.Name)), w.Year)
		gen.Wines = append(gen.Wines, domain.Characteristics{
			Visual: pickTerms(seed, domain.PhaseVisual, count),
			Smell:  pickTerms(seed, domain.PhaseSmell, count),
			Taste:  pickTerms(seed, domain.PhaseTaste, count),
		})
	}
	gen.SimilarityWarning = duplicateWarning(wines)
	return gen, nil
}

// pickTerms 按 (seed, 词) 的哈希排序词表后取前 count 个
func pickTerms(seed string, phase domain.Phase, count int) []string {
	vocab := fallbackVocabulary[phase]
	type ranked struct {
		term string
		rank uint64
	}
	all := make([]ranked, len(vocab))
	for i, term := range vocab {
		h := fnv.New64a()
		_, _ = h.Write([]byte(seed + "|" + string(phase) + "|" + term))
		all[i] = ranked{term: term, rank: h.Sum64()}
	}
	sort.Slice(all, func(i, j int) bool { return all[i].rank < all[j].rank })

	if count > len(all) {
		count = len(all)
	}
	out := make([]string, count)
	for i := range out {
		out[i] = all[i].term
	}
	return out
}

// duplicateWarning 同名同年份的酒会得到完全相同的特征，提示导演
func duplicateWarning(wines []ai.WineInput) string {
	seen := make(map[string]int, len(wines))
	for i, w := range wines {
		key := fmt.Sprintf("%s|%d", strings.ToLower(strings.TrimSpace(w.Name)), w.Year)
		if first, ok := seen[key]; ok {
			return fmt.Sprintf("Wine %d and Wine %d are identical and will be indistinguishable", first+1, i+1)
		}
		seen[key] = i
	}
	return ""
}
