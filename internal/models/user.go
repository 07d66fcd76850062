package models

// DepartmentStructure is the resolved department placement of a user
type DepartmentStructure struct {
	DepartmentID        string   `json:"departmentId"`
	DepartmentName      string   `json:"departmentName"`
	FullPath            string   `json:"fullPath"`
	DepartmentHierarchy []string `json:"departmentHierarchy"`
	Region              string   `json:"region"`
	RegionDepartmentID  string   `json:"regionDepartmentId"`
}

// UserInfo is the authenticated submitter identity
type UserInfo struct {
	UserID              string               `json:"userid"`
	Name                string               `json:"name"`
	SessionKey          string               `json:"sessionKey,omitempty"`
	ExpiresIn           int64                `json:"expiresIn,omitempty"`
	Department          string               `json:"department,omitempty"`
	Region              string               `json:"region,omitempty"`
	DepartmentStructure *DepartmentStructure `json:"departmentStructure,omitempty"`
	DepartmentID        string               `json:"departmentId,omitempty"`
	DepartmentName      string               `json:"departmentName,omitempty"`
	DepartmentFullPath  string               `json:"departmentFullPath,omitempty"`
	DepartmentHierarchy []string             `json:"departmentHierarchy,omitempty"`
	RegionDepartmentID  string               `json:"regionDepartmentId,omitempty"`
	LoginSource         string               `json:"loginSource,omitempty"`
}

// Department is one node of the department tree
type Department struct {
	ID       string        `json:"id"`
	Name     string        `json:"name"`
	ParentID string        `json:"parentId,omitempty"`
	Region   string        `json:"region,omitempty"`
	Children []*Department `json:"children,omitempty"`
}
