package api

import (
	"context"

	"github.com/garyjia/fapiao-client/internal/client"
	"github.com/garyjia/fapiao-client/internal/models"
)

// LoginResult is the payload of a successful login exchange
type LoginResult struct {
	UserID              string                      `json:"userId"`
	UserName            string                      `json:"userName"`
	SessionKey          string                      `json:"sessionKey"`
	ExpiresIn           int64                       `json:"expiresIn,omitempty"`
	DepartmentStructure *models.DepartmentStructure `json:"departmentStructure,omitempty"`
	DepartmentID        string                      `json:"departmentId,omitempty"`
	DepartmentName      string                      `json:"departmentName,omitempty"`
	DepartmentFullPath  string                      `json:"departmentFullPath,omitempty"`
	DepartmentHierarchy []string                    `json:"departmentHierarchy,omitempty"`
	Region              string                      `json:"region,omitempty"`
	RegionDepartmentID  string                      `json:"regionDepartmentId,omitempty"`
}

// AuthAPI wraps the WeCom web login endpoints
type AuthAPI struct {
	client *client.Client
}

// NewAuthAPI creates a new auth API wrapper
func NewAuthAPI(c *client.Client) *AuthAPI {
	return &AuthAPI{client: c}
}

// Login exchanges a single-use WeCom code for a session
func (a *AuthAPI) Login(ctx context.Context, code string) (*LoginResult, error) {
	var result LoginResult
	err := a.client.Post(ctx, "/qywechat/web/login", map[string]string{"code": code}, nil, &result)
	if err != nil {
		return nil, err
	}
	return &result, nil
}

// CheckSession reports whether the session key is still valid server-side
func (a *AuthAPI) CheckSession(ctx context.Context, sessionKey string) (bool, error) {
	var valid bool
	err := a.client.Post(ctx, "/qywechat/web/checkSession", map[string]string{"sessionKey": sessionKey}, nil, &valid)
	if err != nil {
		return false, err
	}
	return valid, nil
}

// Health pings the backend health endpoint
func (a *AuthAPI) Health(ctx context.Context) error {
	return a.client.Get(ctx, "/qywechat/web/health", nil, nil)
}
