package auth

import (
	"context"
	"errors"
	"sync"
	"time"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"storyteller-server-go/internal/domain/auth/store"
	platformerrors "storyteller-server-go/internal/platform/errors"
	"storyteller-server-go/internal/platform/logging"
	"storyteller-server-go/internal/platform/storage"
)

const (
	defaultCleanupInterval = 10 * time.Minute
	minCleanupInterval     = 30 * time.Second
)

// Options encapsulates the dependencies required to construct a Manager.
type Options struct {
	DB              *gorm.DB
	Sessions        store.Store
	Token           *AuthToken
	Logger          *logging.Logger
	SessionTTL      time.Duration
	CleanupInterval time.Duration
}

// Manager owns account records and login sessions. Sign-up and login fail
// softly on taken names and bad credentials; only infrastructure problems
// surface as errors.
type Manager struct {
	db         *gorm.DB
	sessions   store.Store
	token      *AuthToken
	logger     *logging.Logger
	sessionTTL time.Duration

	cleanupInterval time.Duration
	cleanupStop     chan struct{}
	cleanupOnce     sync.Once
}

// NewManager wires a Manager using the supplied options.
func NewManager(opts Options) (*Manager, error) {
	if opts.DB == nil {
		return nil, errors.New("auth manager requires a database")
	}
	if opts.Sessions == nil {
		return nil, errors.New("auth manager requires a session store")
	}
	if opts.Token == nil {
		return nil, errors.New("auth manager requires a token helper")
	}
	if opts.Logger == nil {
		opts.Logger = logging.DefaultLogger
	}
	sessionTTL := opts.SessionTTL
	if sessionTTL <= 0 {
		sessionTTL = 24 * time.Hour
	}
	cleanupInterval := opts.CleanupInterval
	if cleanupInterval <= 0 {
		cleanupInterval = defaultCleanupInterval
	} else if cleanupInterval < minCleanupInterval {
		opts.Logger.Warn("cleanup interval too small, adjusting to %v", minCleanupInterval)
		cleanupInterval = minCleanupInterval
	}

	mgr := &Manager{
		db:              opts.DB,
		sessions:        opts.Sessions,
		token:           opts.Token.WithTTL(sessionTTL),
		logger:          opts.Logger,
		sessionTTL:      sessionTTL,
		cleanupInterval: cleanupInterval,
		cleanupStop:     make(chan struct{}),
	}

	go mgr.runCleanup()
	return mgr, nil
}

func (m *Manager) runCleanup() {
	ticker := time.NewTicker(m.cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if err := m.sessions.CleanupExpired(context.Background()); err != nil {
				m.logger.Warn("session store cleanup failed: %v", err)
			}
		case <-m.cleanupStop:
			return
		}
	}
}

// SignUp creates an account. Returns false without error when the username is
// already taken.
func (m *Manager) SignUp(ctx context.Context, username, password string) (bool, error) {
	if username == "" || password == "" {
		return false, platformerrors.New(platformerrors.KindValidation, "auth.signup",
			"username and password are required")
	}

	var count int64
	if err := m.db.WithContext(ctx).Model(&storage.User{}).
		Where("username = ?", username).Count(&count).Error; err != nil {
		return false, platformerrors.Wrap(platformerrors.KindStorage, "auth.signup",
			"failed to check username", err)
	}
	if count > 0 {
		m.logger.Debug("signup rejected, username taken: %s", username)
		return false, nil
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return false, platformerrors.Wrap(platformerrors.KindAuth, "auth.signup",
			"failed to hash password", err)
	}

	user := &storage.User{Username: username, PasswordHash: string(hash)}
	if err := m.db.WithContext(ctx).Create(user).Error; err != nil {
		return false, platformerrors.Wrap(platformerrors.KindStorage, "auth.signup",
			"failed to create user", err)
	}

	m.logger.InfoTag("Auth", "account created: %s", username)
	return true, nil
}

// Login verifies credentials and opens a session. Returns an empty token and
// false on unknown users or bad passwords; no session is created then.
func (m *Manager) Login(ctx context.Context, username, password string) (string, bool, error) {
	var user storage.User
	err := m.db.WithContext(ctx).Where("username = ?", username).First(&user).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			m.logger.Debug("login rejected, unknown user: %s", username)
			return "", false, nil
		}
		return "", false, platformerrors.Wrap(platformerrors.KindStorage, "auth.login",
			"failed to load user", err)
	}

	if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)) != nil {
		m.logger.Debug("login rejected, bad credentials: %s", username)
		return "", false, nil
	}

	token, err := m.token.GenerateToken(username)
	if err != nil {
		return "", false, platformerrors.Wrap(platformerrors.KindAuth, "auth.login",
			"failed to issue token", err)
	}

	now := time.Now()
	expiresAt := now.Add(m.sessionTTL)
	session := store.Session{
		Token:     token,
		Username:  username,
		CreatedAt: now,
		ExpiresAt: &expiresAt,
	}
	if err := m.sessions.Store(ctx, session); err != nil {
		return "", false, platformerrors.Wrap(platformerrors.KindStorage, "auth.login",
			"failed to persist session", err)
	}

	m.logger.InfoTag("Auth", "login: %s", username)
	return token, true, nil
}

// Logout revokes the session; unknown tokens are a no-op.
func (m *Manager) Logout(ctx context.Context, token string) error {
	if token == "" {
		return nil
	}
	if err := m.sessions.Remove(ctx, token); err != nil {
		return platformerrors.Wrap(platformerrors.KindStorage, "auth.logout",
			"failed to remove session", err)
	}
	return nil
}

// Authenticate resolves a token to its username. Returns false for invalid,
// expired or revoked tokens.
func (m *Manager) Authenticate(ctx context.Context, token string) (string, bool) {
	if token == "" {
		return "", false
	}
	ok, username, err := m.token.VerifyToken(token)
	if err != nil || !ok {
		return "", false
	}
	// Revocation check: the token must still be present in the store.
	if _, err := m.sessions.Get(ctx, token); err != nil {
		return "", false
	}
	return username, true
}

// Close stops the cleanup loop and releases the session store.
func (m *Manager) Close() error {
	m.cleanupOnce.Do(func() {
		close(m.cleanupStop)
	})
	return m.sessions.Close(context.Background())
}
