package auth

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// OAuthConfig holds the WeCom OAuth redirection parameters
type OAuthConfig struct {
	CorpID      string
	AgentID     string
	RedirectURI string
	State       string
	// CallbackAddr is the local listen address the redirect lands on
	CallbackAddr string
}

// AuthorizeURL builds the WeCom web-login URL the user opens in a browser
func (c OAuthConfig) AuthorizeURL() string {
	query := url.Values{
		"appid":        {c.CorpID},
		"agentid":      {c.AgentID},
		"redirect_uri": {c.RedirectURI},
		"state":        {c.State},
	}
	return "https://login.work.weixin.qq.com/wwlogin/sso/login?" + query.Encode()
}

// CaptureCode runs a one-shot local HTTP server on CallbackAddr and waits for
// WeCom to redirect back with the single-use code. A state mismatch is
// rejected; the first valid code wins and shuts the server down.
func CaptureCode(ctx context.Context, cfg OAuthConfig, logger *zap.Logger) (string, error) {
	codeCh := make(chan string, 1)

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())

	router.GET("/login", func(c *gin.Context) {
		code := c.Query("code")
		state := c.Query("state")
		if cfg.State != "" && state != cfg.State {
			logger.Warn("OAuth callback state mismatch", zap.String("state", state))
			c.String(http.StatusBadRequest, "state mismatch")
			return
		}
		if code == "" {
			c.String(http.StatusBadRequest, "missing code")
			return
		}
		select {
		case codeCh <- code:
		default:
		}
		c.String(http.StatusOK, "登录成功，请回到终端继续操作")
	})

	srv := &http.Server{
		Addr:    cfg.CallbackAddr,
		Handler: router,
	}

	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	logger.Info("Waiting for WeCom login callback",
		zap.String("addr", cfg.CallbackAddr),
		zap.String("authorize_url", cfg.AuthorizeURL()))

	var code string
	var capErr error
	select {
	case code = <-codeCh:
	case capErr = <-errCh:
		capErr = fmt.Errorf("callback server failed: %w", capErr)
	case <-ctx.Done():
		capErr = ctx.Err()
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("Callback server shutdown failed", zap.Error(err))
	}

	return code, capErr
}
