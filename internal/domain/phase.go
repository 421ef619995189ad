package domain

// Phase 是每款酒内部的子轮次。
type Phase string

const (
	PhaseVisual Phase = "VISUAL"
	PhaseSmell  Phase = "SMELL"
	PhaseTaste  Phase = "TASTE"
)

// Phases 按游戏顺序列出全部阶段
var Phases = []Phase{PhaseVisual, PhaseSmell, PhaseTaste}

func (p Phase) Valid() bool {
	switch p {
	case PhaseVisual, PhaseSmell, PhaseTaste:
		return true
	}
	return false
}
