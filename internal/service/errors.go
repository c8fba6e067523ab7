package service

import (
	"errors"
)

var (
	// ErrInvalidScoreConfig 打分参数校验失败
	ErrInvalidScoreConfig = errors.New("invalid score config")
	// ErrInvalidRule 规则写入校验失败（正则非法、match_type 未知等）
	ErrInvalidRule = errors.New("invalid rule")
	// ErrAccountNotFound 账号不存在
	ErrAccountNotFound = errors.New("account not found")
	// ErrInvalidInput 请求参数不完整
	ErrInvalidInput = errors.New("invalid input")
)
