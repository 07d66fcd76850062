package api

import (
	"context"
	"net/url"

	"github.com/garyjia/fapiao-client/internal/client"
	"github.com/garyjia/fapiao-client/internal/models"
)

// UserDepartmentInfo is the user→department mapping record
type UserDepartmentInfo struct {
	UserID              string   `json:"userId"`
	DepartmentID        string   `json:"departmentId"`
	DepartmentName      string   `json:"departmentName"`
	DepartmentFullPath  string   `json:"departmentFullPath,omitempty"`
	DepartmentHierarchy []string `json:"departmentHierarchy,omitempty"`
	Region              string   `json:"region,omitempty"`
	RegionDepartmentID  string   `json:"regionDepartmentId,omitempty"`
}

// CacheStatus describes the server-side user-department cache
type CacheStatus struct {
	Entries     int    `json:"entries"`
	LastRefresh string `json:"lastRefresh,omitempty"`
	Warmed      bool   `json:"warmed"`
}

// DepartmentAPI wraps the department and user-info endpoints
type DepartmentAPI struct {
	client *client.Client
}

// NewDepartmentAPI creates a new department API wrapper
func NewDepartmentAPI(c *client.Client) *DepartmentAPI {
	return &DepartmentAPI{client: c}
}

// List fetches all department tree nodes
func (a *DepartmentAPI) List(ctx context.Context) ([]*models.Department, error) {
	var departments []*models.Department
	if err := a.client.Get(ctx, "/department/list", nil, &departments); err != nil {
		return nil, err
	}
	return departments, nil
}

// RegionOf resolves the region a department belongs to
func (a *DepartmentAPI) RegionOf(ctx context.Context, departmentID string) (string, error) {
	query := url.Values{"departmentId": {departmentID}}
	var region string
	if err := a.client.Get(ctx, "/department/getRegion", query, &region); err != nil {
		return "", err
	}
	return region, nil
}

// UserDepartment fetches the department mapping for a user
func (a *DepartmentAPI) UserDepartment(ctx context.Context, userID string) (*UserDepartmentInfo, error) {
	var info UserDepartmentInfo
	if err := a.client.Get(ctx, "/user-department/info/"+url.PathEscape(userID), nil, &info); err != nil {
		return nil, err
	}
	return &info, nil
}

// RefreshCache invalidates the server-side user-department cache
func (a *DepartmentAPI) RefreshCache(ctx context.Context) error {
	return a.client.Post(ctx, "/user-department/refresh-cache", nil, nil, nil)
}

// CacheStatus fetches server-side cache statistics
func (a *DepartmentAPI) CacheStatus(ctx context.Context) (*CacheStatus, error) {
	var status CacheStatus
	if err := a.client.Get(ctx, "/user-department/cache-status", nil, &status); err != nil {
		return nil, err
	}
	return &status, nil
}

// Members fetches the members of a department
func (a *DepartmentAPI) Members(ctx context.Context, departmentID string) ([]*models.UserInfo, error) {
	var members []*models.UserInfo
	if err := a.client.Get(ctx, "/user-info/department/"+url.PathEscape(departmentID), nil, &members); err != nil {
		return nil, err
	}
	return members, nil
}

// FullUserInfo fetches the full profile of a user
func (a *DepartmentAPI) FullUserInfo(ctx context.Context, userID string) (*models.UserInfo, error) {
	var info models.UserInfo
	if err := a.client.Get(ctx, "/user-info/full/"+url.PathEscape(userID), nil, &info); err != nil {
		return nil, err
	}
	return &info, nil
}

// BuildDepartmentTree assembles flat nodes into a tree. Nodes whose parent is
// missing become roots.
func BuildDepartmentTree(departments []*models.Department) []*models.Department {
	byID := make(map[string]*models.Department, len(departments))
	for _, dept := range departments {
		clone := *dept
		clone.Children = nil
		byID[dept.ID] = &clone
	}

	var roots []*models.Department
	for _, dept := range departments {
		node := byID[dept.ID]
		if parent, ok := byID[dept.ParentID]; ok && dept.ParentID != "" {
			parent.Children = append(parent.Children, node)
		} else {
			roots = append(roots, node)
		}
	}
	return roots
}

// DepartmentPath returns the root→leaf name path of a department within the
// flat node list.
func DepartmentPath(departments []*models.Department, departmentID string) []string {
	byID := make(map[string]*models.Department, len(departments))
	for _, dept := range departments {
		byID[dept.ID] = dept
	}

	var path []string
	seen := make(map[string]bool)
	for id := departmentID; id != ""; {
		dept, ok := byID[id]
		if !ok || seen[id] {
			break
		}
		seen[id] = true
		path = append([]string{dept.Name}, path...)
		id = dept.ParentID
	}
	return path
}
