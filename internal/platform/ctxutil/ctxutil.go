package ctxutil

import (
	"context"
	"time"
)

// 非公開キーでコリジョンを避ける
type key int

const (
	keyUserID key = iota
	keyOpName
)

func WithUserID(ctx context.Context, userID int64) context.Context {
	return context.WithValue(ctx, keyUserID, userID)
}

func UserID(ctx context.Context) (int64, bool) {
	id, ok := ctx.Value(keyUserID).(int64)
	return id, ok
}

// WithOp / Op: 操作名（ログ用）
func WithOp(ctx context.Context, name string) context.Context {
	return context.WithValue(ctx, keyOpName, name)
}

func Op(ctx context.Context) (string, bool) {
	s, ok := ctx.Value(keyOpName).(string)
	return s, ok
}

var DefaultDBTimeout = 5 * time.Second

func WithTimeout(parent context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(parent)
	}
	return context.WithTimeout(parent, d)
}

// WithDBTimeout: 親の残り時間が短ければそちらを優先
func WithDBTimeout(parent context.Context) (context.Context, context.CancelFunc) {
	if dl, ok := parent.Deadline(); ok {
		if remain := time.Until(dl); remain < DefaultDBTimeout {
			return context.WithTimeout(parent, remain)
		}
	}
	return context.WithTimeout(parent, DefaultDBTimeout)
}
