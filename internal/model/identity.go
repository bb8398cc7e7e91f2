package model

// 用户角色常量。角色只影响管理操作的权限，不改变可检索的知识域范围。
const (
	RoleUser  = "USER"
	RoleAdmin = "ADMIN"
)

// Identity 描述一次请求的调用方身份。
// 未登录的调用方是 Guest (Authenticated=false)；登录后按角色细分。
// Identity 是临时值，随请求生成，不跨会话共享。
type Identity struct {
	Authenticated bool
	Username      string
	Role          string
}

// Guest 返回未认证的访客身份。
func Guest() Identity {
	return Identity{}
}

// IsAdmin 判断该身份是否为管理员。
func (i Identity) IsAdmin() bool {
	return i.Authenticated && i.Role == RoleAdmin
}
