package session

import (
	"fmt"
	"strings"

	"wine-tasting/internal/domain"
)

const directorPlayerPrefix = "director-"

// DirectorPlayerID 返回导演在某局游戏中作为玩家的固定 ID。
func DirectorPlayerID(userID uint, code string) string {
	return fmt.Sprintf("%s%d-%s", directorPlayerPrefix, userID, code)
}

func isDirectorPlayerID(id string) bool {
	return strings.HasPrefix(id, directorPlayerPrefix)
}

// Identity 是 join-game 中用来识别玩家的字段。
type Identity struct {
	PlayerID    string
	Nickname    string
	IsReconnect bool
}

// Fresh 表示这是一次普通加入，而不是客户端声明的重连。
func (i Identity) Fresh() bool {
	return i.PlayerID == "" && !i.IsReconnect
}

// MatchKind 说明 ResolvePlayer 是如何找到已有玩家的。
type MatchKind int

const (
	MatchNone MatchKind = iota
	MatchByID
	MatchByNickname
)

func normalizeNickname(nickname string) string {
	return strings.TrimSpace(nickname)
}

func sameNickname(a, b string) bool {
	return strings.EqualFold(normalizeNickname(a), normalizeNickname(b))
}

// ResolvePlayer 在游戏已有的玩家中查找重连目标：先按 ID，再按昵称。
// 导演的派生玩家不会被普通加入匹配到。
func ResolvePlayer(existing []domain.Player, id Identity) (*domain.Player, MatchKind) {
	if id.PlayerID != "" && !isDirectorPlayerID(id.PlayerID) {
		for i := range existing {
			if existing[i].ID == id.PlayerID {
				return &existing[i], MatchByID
			}
		}
	}
	if normalizeNickname(id.Nickname) == "" {
		return nil, MatchNone
	}
	for i := range existing {
		if isDirectorPlayerID(existing[i].ID) {
			continue
		}
		if sameNickname(existing[i].Nickname, id.Nickname) {
			return &existing[i], MatchByNickname
		}
	}
	return nil, MatchNone
}

// nicknameOwnedByDirector 判断昵称是否已被导演的派生玩家占用
func nicknameOwnedByDirector(existing []domain.Player, nickname string) bool {
	for i := range existing {
		if isDirectorPlayerID(existing[i].ID) && sameNickname(existing[i].Nickname, nickname) {
			return true
		}
	}
	return false
}
