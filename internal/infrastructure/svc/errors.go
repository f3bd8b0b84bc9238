package svc

import "errors"

// ErrNoFeedsEnabled 错误：配置的行情源未注册
var ErrNoFeedsEnabled = errors.New("market feed not registered")

// ErrStorageInitFailed 错误：存储初始化失败
var ErrStorageInitFailed = errors.New("storage initialization failed")

// ErrChannelInitFailed 错误：通知通道初始化失败
var ErrChannelInitFailed = errors.New("notification channel initialization failed")
