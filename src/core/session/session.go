package session

import (
	"errors"
	"sync"
	"time"

	"depthdemo-server-go/src/core/compose"
	"depthdemo-server-go/src/core/image"

	"github.com/google/uuid"
)

// ErrNotFound 会话不存在或已过期
var ErrNotFound = errors.New("session not found")

// CustomImageSet 自定义上传图片组的名称
const CustomImageSet = "Custom Images"

// Inputs 会话内跨请求保留的表单状态。图片在选择时即已解码，只读共享
type Inputs struct {
	ImageSet   string
	Primary    *image.Decoded
	Depth      *image.Decoded
	EV         *image.Decoded // nil 表示未提供EV图片
	UserUpload bool
	Params     compose.Parameters
	Brightness int
}

// Result 最近一次合成结果
type Result struct {
	JPEG           []byte
	Width          int
	Height         int
	SequenceNumber int // 未记录时为 -1
}

// Session 一个登录会话的全部状态
type Session struct {
	ID        string
	CreatedAt time.Time
	LastSeen  time.Time

	mu     sync.Mutex
	inputs Inputs
	result *Result
}

// Inputs 返回表单状态的副本
func (s *Session) Inputs() Inputs {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.inputs
}

// UpdateInputs 在会话锁内修改表单状态
func (s *Session) UpdateInputs(fn func(in *Inputs)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn(&s.inputs)
}

// Result 返回最近一次合成结果
func (s *Session) Result() *Result {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.result
}

// SetResult 保存合成结果
func (s *Session) SetResult(r *Result) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.result = r
}

// Store 会话管理器
type Store struct {
	sessions map[string]*Session
	ttl      time.Duration
	now      func() time.Time
	mu       sync.RWMutex
}

// NewStore 创建会话管理器，ttl 为空闲过期时间
func NewStore(ttl time.Duration) *Store {
	return &Store{
		sessions: make(map[string]*Session),
		ttl:      ttl,
		now:      time.Now,
	}
}

// Create 创建新会话
func (st *Store) Create() *Session {
	now := st.now()
	s := &Session{
		ID:        uuid.New().String(),
		CreatedAt: now,
		LastSeen:  now,
	}

	st.mu.Lock()
	st.sessions[s.ID] = s
	st.mu.Unlock()
	return s
}

// Get 获取会话并刷新活跃时间
func (st *Store) Get(id string) (*Session, error) {
	st.mu.Lock()
	defer st.mu.Unlock()

	s, ok := st.sessions[id]
	if !ok {
		return nil, ErrNotFound
	}
	now := st.now()
	if st.ttl > 0 && now.Sub(s.LastSeen) > st.ttl {
		delete(st.sessions, id)
		return nil, ErrNotFound
	}
	s.LastSeen = now
	return s, nil
}

// Delete 结束会话
func (st *Store) Delete(id string) {
	st.mu.Lock()
	defer st.mu.Unlock()
	delete(st.sessions, id)
}

// Len 当前会话数
func (st *Store) Len() int {
	st.mu.RLock()
	defer st.mu.RUnlock()
	return len(st.sessions)
}

// Sweep 清理过期会话，返回清理数量
func (st *Store) Sweep() int {
	if st.ttl <= 0 {
		return 0
	}
	st.mu.Lock()
	defer st.mu.Unlock()

	now := st.now()
	cleaned := 0
	for id, s := range st.sessions {
		if now.Sub(s.LastSeen) > st.ttl {
			delete(st.sessions, id)
			cleaned++
		}
	}
	return cleaned
}
