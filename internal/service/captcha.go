package service

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"commentbox/backend/internal/storage"
)

// ChallengeStore 验证码挑战的单次使用存储（由 redis.Cache 实现）
type ChallengeStore interface {
	SaveChallenge(ctx context.Context, key, answer string, ttl time.Duration) error
	TakeChallenge(ctx context.Context, key string) (string, error)
}

// Challenge 下发给客户端的验证码挑战
type Challenge struct {
	Key      string `json:"key"`
	Question string `json:"question"`
}

// CaptchaService 生成并校验算术验证码。
//
// 答案只存服务端（redis，带 TTL），校验时取出即删除，
// 同一个挑战无论答对答错都只能用一次。
type CaptchaService struct {
	store ChallengeStore
	ttl   time.Duration
}

// NewCaptchaService 创建验证码服务。
func NewCaptchaService(store ChallengeStore, ttl time.Duration) *CaptchaService {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &CaptchaService{store: store, ttl: ttl}
}

// NewChallenge 生成一道算术题并保存答案。
func (s *CaptchaService) NewChallenge(ctx context.Context) (*Challenge, error) {
	a := rand.IntN(20) + 1
	b := rand.IntN(20) + 1

	var question string
	var answer int
	if rand.IntN(2) == 0 {
		question = fmt.Sprintf("%d + %d = ?", a, b)
		answer = a + b
	} else {
		// 减法保证结果非负
		if a < b {
			a, b = b, a
		}
		question = fmt.Sprintf("%d - %d = ?", a, b)
		answer = a - b
	}

	key := uuid.NewString()
	if err := s.store.SaveChallenge(ctx, key, strconv.Itoa(answer), s.ttl); err != nil {
		return nil, fmt.Errorf("failed to save captcha challenge: %w", err)
	}

	return &Challenge{Key: key, Question: question}, nil
}

// Validate 校验一次验证码作答。
//
// 挑战不存在（过期或已用过）按答错处理，不暴露区别。
func (s *CaptchaService) Validate(ctx context.Context, key, answer string) (bool, error) {
	if key == "" {
		return false, nil
	}

	expected, err := s.store.TakeChallenge(ctx, key)
	if err != nil {
		if errors.Is(err, storage.ErrCacheMiss) {
			return false, nil
		}
		return false, fmt.Errorf("failed to load captcha challenge: %w", err)
	}

	return strings.TrimSpace(answer) == expected, nil
}
