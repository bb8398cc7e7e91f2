// Package model 包含了应用的数据模型定义。
package model

import "fmt"

// Domain 表示一个知识域。每个域拥有独立的文档目录、分块表和向量索引。
type Domain string

const (
	// DomainHR 人力资源知识域。
	DomainHR Domain = "hr"
	// DomainQA 软件测试/质量保障知识域。
	DomainQA Domain = "qa"
)

// AllDomains 返回系统支持的全部知识域。
func AllDomains() []Domain {
	return []Domain{DomainHR, DomainQA}
}

// ParseDomain 将字符串解析为 Domain。
// 未识别的取值返回错误，而不是静默回退到某个默认域。
func ParseDomain(s string) (Domain, error) {
	switch Domain(s) {
	case DomainHR:
		return DomainHR, nil
	case DomainQA:
		return DomainQA, nil
	default:
		return "", fmt.Errorf("未知的知识域 '%s' (支持: hr, qa)", s)
	}
}

// String 返回域的小写标识。
func (d Domain) String() string {
	return string(d)
}

// Upper 返回域的大写展示名，用于日志与状态展示。
func (d Domain) Upper() string {
	switch d {
	case DomainHR:
		return "HR"
	case DomainQA:
		return "QA"
	}
	return string(d)
}
