package auth

import (
	"context"
	"net/url"
	"sync"
	"time"

	"github.com/garyjia/fapiao-client/internal/api"
	"github.com/garyjia/fapiao-client/internal/models"
	"github.com/garyjia/fapiao-client/internal/storage"
	"go.uber.org/zap"
)

// SessionTTL is the client-side idle limit. It wins over any server-reported
// expiresIn.
const SessionTTL = 30 * time.Minute

// API is the slice of the backend the store needs
type API interface {
	Login(ctx context.Context, code string) (*api.LoginResult, error)
	CheckSession(ctx context.Context, sessionKey string) (bool, error)
}

// Store owns the authenticated session: the submitter identity and the
// session key, mirrored to the durable snapshot. isLoggedIn ⇔ sessionKey≠"".
type Store struct {
	mu        sync.RWMutex
	api       API
	snapshots storage.SnapshotStore
	logger    *zap.Logger
	now       func() time.Time

	userInfo   *models.UserInfo
	sessionKey string
}

// NewStore creates the session store and adopts any unexpired snapshot
func NewStore(authAPI API, snapshots storage.SnapshotStore, logger *zap.Logger) *Store {
	s := &Store{
		api:       authAPI,
		snapshots: snapshots,
		logger:    logger,
		now:       time.Now,
	}
	s.LoadFromStorage()
	return s
}

// Login exchanges a single-use WeCom code for a session and persists the
// snapshot. Returns false with a nil error when the backend rejects the code.
func (s *Store) Login(ctx context.Context, code string) (bool, error) {
	result, err := s.api.Login(ctx, code)
	if err != nil {
		s.logger.Warn("Login request failed", zap.Error(err))
		return false, err
	}
	if result.SessionKey == "" {
		s.logger.Warn("Login response carried no session key")
		return false, nil
	}

	info := &models.UserInfo{
		UserID:              result.UserID,
		Name:                result.UserName,
		SessionKey:          result.SessionKey,
		DepartmentStructure: result.DepartmentStructure,
		DepartmentID:        result.DepartmentID,
		DepartmentName:      result.DepartmentName,
		DepartmentFullPath:  result.DepartmentFullPath,
		DepartmentHierarchy: result.DepartmentHierarchy,
		Region:              result.Region,
		RegionDepartmentID:  result.RegionDepartmentID,
	}
	if info.Department == "" {
		info.Department = result.DepartmentName
		if info.Department == "" && result.DepartmentStructure != nil {
			info.Department = result.DepartmentStructure.DepartmentName
		}
	}

	s.mu.Lock()
	s.userInfo = info
	s.sessionKey = result.SessionKey
	s.mu.Unlock()

	snap := &storage.AuthSnapshot{
		UserInfo:   info,
		SessionKey: result.SessionKey,
		Timestamp:  s.now().UnixMilli(),
	}
	if err := s.snapshots.Save(snap); err != nil {
		// the in-memory session is still usable
		s.logger.Warn("Failed to persist auth snapshot", zap.Error(err))
	}

	s.logger.Info("Login succeeded",
		zap.String("user_id", info.UserID),
		zap.String("region", info.Region))
	return true, nil
}

// CheckSession asks the backend whether the current session is still valid
func (s *Store) CheckSession(ctx context.Context) bool {
	key := s.SessionKey()
	if key == "" {
		return false
	}
	valid, err := s.api.CheckSession(ctx, key)
	if err != nil {
		s.logger.Debug("Session check failed", zap.Error(err))
		return false
	}
	return valid
}

// Logout clears the in-memory session and the durable snapshot
func (s *Store) Logout() {
	s.mu.Lock()
	s.userInfo = nil
	s.sessionKey = ""
	s.mu.Unlock()

	if err := s.snapshots.Clear(); err != nil {
		s.logger.Warn("Failed to clear auth snapshot", zap.Error(err))
	}
	s.logger.Info("Logged out")
}

// ForceLogout is the 401 hook: same as Logout, logged at warn so the stale
// session is visible.
func (s *Store) ForceLogout() {
	s.logger.Warn("Session rejected by server, clearing local state")
	s.Logout()
}

// LoadFromStorage adopts the durable snapshot unless it is older than
// SessionTTL. Percent-encoded names coming from WeCom are decoded; decode
// failure keeps the stored value verbatim. The decoded form is not written
// back; only the next login persists.
func (s *Store) LoadFromStorage() {
	snap, err := s.snapshots.Load()
	if err != nil {
		s.logger.Error("Failed to load auth snapshot", zap.Error(err))
		return
	}
	if snap == nil {
		return
	}

	age := s.now().UnixMilli() - snap.Timestamp
	if age >= SessionTTL.Milliseconds() {
		if err := s.snapshots.Clear(); err != nil {
			s.logger.Warn("Failed to clear expired auth snapshot", zap.Error(err))
		}
		s.logger.Info("登录已过期，请重新登录",
			zap.Duration("age", time.Duration(age)*time.Millisecond))
		return
	}

	if snap.UserInfo != nil {
		snap.UserInfo.Name = decodeTolerant(snap.UserInfo.Name, "name", s.logger)
		snap.UserInfo.DepartmentName = decodeTolerant(snap.UserInfo.DepartmentName, "department_name", s.logger)
	}

	s.mu.Lock()
	s.userInfo = snap.UserInfo
	s.sessionKey = snap.SessionKey
	s.mu.Unlock()
}

// decodeTolerant undoes WeCom percent-encoding; failures keep the input
func decodeTolerant(value, field string, logger *zap.Logger) string {
	decoded, err := url.PathUnescape(value)
	if err != nil {
		logger.Warn("Failed to decode stored field, keeping verbatim",
			zap.String("field", field),
			zap.Error(err))
		return value
	}
	return decoded
}

// IsLoggedIn reports whether a session key is present
func (s *Store) IsLoggedIn() bool {
	return s.SessionKey() != ""
}

// SessionKey returns the current session key, empty when logged out.
// Implements client.SessionProvider.
func (s *Store) SessionKey() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.sessionKey
}

// UserID returns the submitter's user id
func (s *Store) UserID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.userInfo == nil {
		return ""
	}
	return s.userInfo.UserID
}

// UserName returns the submitter's display name
func (s *Store) UserName() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.userInfo == nil {
		return ""
	}
	return s.userInfo.Name
}

// Region returns the submitter's resolved region
func (s *Store) Region() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.userInfo == nil {
		return ""
	}
	return s.userInfo.Region
}

// UserInfo returns a copy of the current identity, nil when logged out
func (s *Store) UserInfo() *models.UserInfo {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.userInfo == nil {
		return nil
	}
	clone := *s.userInfo
	return &clone
}
