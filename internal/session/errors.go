package session

import "errors"

// 命令失败时返回给调用方的错误。消息文本会直接出现在 error 事件里。
var (
	ErrGameNotFound     = errors.New("Game not found")
	ErrWineNotFound     = errors.New("Wine not found")
	ErrPlayerNotFound   = errors.New("Player not found")
	ErrUnauthorized     = errors.New("Unauthorized")
	ErrNicknameTaken    = errors.New("Nickname already taken")
	ErrNicknameRequired = errors.New("Nickname is required")
	ErrInvalidPhase     = errors.New("Invalid phase")
	ErrGameNotStarted   = errors.New("Game is not in progress")
	ErrNoMoreWines      = errors.New("No more wines")
	ErrDependency       = errors.New("Service temporarily unavailable")
)

var clientErrors = []error{
	ErrGameNotFound, ErrWineNotFound, ErrPlayerNotFound, ErrUnauthorized,
	ErrNicknameTaken, ErrNicknameRequired, ErrInvalidPhase, ErrGameNotStarted,
	ErrNoMoreWines, ErrDependency,
}

// ClientMessage 返回可以安全展示给客户端的错误文本，内部细节 (驱动错误等) 不会泄露。
func ClientMessage(err error) string {
	for _, known := range clientErrors {
		if errors.Is(err, known) {
			return known.Error()
		}
	}
	return ErrDependency.Error()
}
