// Package service 实现了应用的核心业务逻辑。
package service

import (
	"errors"
	"strings"

	"hv-search-go/internal/config"
	"hv-search-go/internal/model"
	"hv-search-go/pkg/hash"
	"hv-search-go/pkg/log"
)

// ErrInvalidCredentials 表示用户名或密码不在白名单内。
// 对外只暴露统一的错误信息，不区分用户不存在和密码错误。
var ErrInvalidCredentials = errors.New("用户名或密码错误")

// bcrypt 哈希口令在白名单中的前缀标记。
const bcryptPrefix = "bcrypt:"

// AccessService 定义了身份验证与知识域访问裁决的接口。
// 访问范围在每次请求时基于当次身份重新裁决，不缓存跨请求的授权结果。
type AccessService interface {
	// VerifyCredentials 校验用户名密码，成功时返回该用户的角色。
	VerifyCredentials(username, password string) (string, error)
	// EligibleDomains 返回该身份可检索的知识域集合。
	// 访客只能访问 QA 域，任何已认证身份可访问全部域，角色不再细分检索范围。
	EligibleDomains(identity model.Identity) []model.Domain
	// CanAccess 判断该身份是否可以检索指定知识域。
	CanAccess(identity model.Identity, domain model.Domain) bool
	// Persona 返回注入给 LLM 的 system 人设文本，随身份即时生成。
	Persona(identity model.Identity) string
}

type accessEntry struct {
	password string
	role     string
}

type accessService struct {
	users map[string]accessEntry
}

// NewAccessService 从配置的白名单构建 AccessService。
// 每条记录的格式为 username:password[:role]，格式错误的记录跳过并告警。
func NewAccessService(cfg config.AuthConfig) AccessService {
	users := make(map[string]accessEntry)
	for _, entry := range cfg.Users {
		parts := strings.SplitN(entry, ":", 2)
		if len(parts) < 2 || parts[0] == "" || parts[1] == "" {
			log.Warnf("[AccessService] 跳过格式错误的白名单记录: %q", entry)
			continue
		}
		// rest 为 password[:role]；password 本身可以是 "bcrypt:<hash>"，
		// 因此 role 只在末段恰好是已知角色名时才拆出来
		password, role := parts[1], model.RoleUser
		if i := strings.LastIndex(password, ":"); i > 0 {
			switch strings.ToLower(password[i+1:]) {
			case "admin":
				password, role = password[:i], model.RoleAdmin
			case "user":
				password = password[:i]
			}
		}
		users[parts[0]] = accessEntry{password: password, role: role}
	}
	log.Infof("[AccessService] 已加载 %d 个白名单用户", len(users))
	return &accessService{users: users}
}

func (s *accessService) VerifyCredentials(username, password string) (string, error) {
	entry, ok := s.users[username]
	if !ok {
		return "", ErrInvalidCredentials
	}
	if strings.HasPrefix(entry.password, bcryptPrefix) {
		if !hash.CheckPasswordHash(password, strings.TrimPrefix(entry.password, bcryptPrefix)) {
			return "", ErrInvalidCredentials
		}
	} else if entry.password != password {
		return "", ErrInvalidCredentials
	}
	return entry.role, nil
}

func (s *accessService) EligibleDomains(identity model.Identity) []model.Domain {
	if identity.Authenticated {
		return []model.Domain{model.DomainQA, model.DomainHR}
	}
	return []model.Domain{model.DomainQA}
}

func (s *accessService) CanAccess(identity model.Identity, domain model.Domain) bool {
	for _, d := range s.EligibleDomains(identity) {
		if d == domain {
			return true
		}
	}
	return false
}

// LLM 人设文本。面向模型的提示词统一使用英文。
const (
	guestPersona = "You are a technical support expert. You answer questions based exclusively on the " +
		"technical support knowledge base (QA) provided in the context. You must NOT answer questions " +
		"about human resources, internal policies, salaries, or vacations; politely explain that this " +
		"information requires an authenticated session. If the answer is not in the context, say so honestly."

	authenticatedPersona = "You are an internal assistant expert in both human resources policies and " +
		"technical support. You answer questions based exclusively on the documents provided in the " +
		"context, which may come from the HR knowledge base or the technical QA knowledge base. " +
		"If the answer is not in the context, say so honestly."

	adminPersonaSuffix = " You are speaking with an administrator: you may additionally explain " +
		"administrative capabilities such as rebuilding the document indexes."
)

func (s *accessService) Persona(identity model.Identity) string {
	if !identity.Authenticated {
		return guestPersona
	}
	if identity.IsAdmin() {
		return authenticatedPersona + adminPersonaSuffix
	}
	return authenticatedPersona
}
