package domain

// RoomPointer 是缓存中 game:<code>:state 的值，仅用于恢复当前进度。
type RoomPointer struct {
	CurrentWine    int   `json:"currentWine"`
	CurrentPhase   Phase `json:"currentPhase"`
	IsGameStarted  bool  `json:"isGameStarted"`
	IsGameFinished bool  `json:"isGameFinished"`
}
