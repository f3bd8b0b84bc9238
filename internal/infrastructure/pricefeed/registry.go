// Package pricefeed maps a feed.source name from config to the exchange
// package that serves it. Exchange packages add themselves in init().
package pricefeed

import (
	"sort"
	"strings"
	"sync"

	"github.com/rs/zerolog/log"

	"pricealert/internal/application/port"
)

// Factory builds a MarketFeed; an empty wsURL means the venue's default endpoint.
type Factory func(wsURL string) port.MarketFeed

var (
	mu        sync.RWMutex
	factories = make(map[string]Factory)
)

func key(name string) string { return strings.ToLower(strings.TrimSpace(name)) }

// Register 行情源名称大小写不敏感，重复注册以后者为准
func Register(source string, factory Factory) {
	if factory == nil || key(source) == "" {
		log.Warn().Str("source", source).Msg("skip market feed without name or factory")
		return
	}
	mu.Lock()
	defer mu.Unlock()
	if _, dup := factories[key(source)]; dup {
		log.Warn().Str("source", source).Msg("market feed registered twice, keeping the last one")
	}
	factories[key(source)] = factory
}

func Get(source string) (Factory, bool) {
	mu.RLock()
	defer mu.RUnlock()
	f, ok := factories[key(source)]
	return f, ok
}

// Names 已注册的行情源，有序
func Names() []string {
	mu.RLock()
	defer mu.RUnlock()
	out := make([]string, 0, len(factories))
	for name := range factories {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}
