package usecases

import (
	"sort"
	"sync"

	"github.com/chindada/leopard/pkg/eventbus"
	"github.com/chindada/leopard/pkg/log"
	"github.com/maruel/natural"
	"github.com/yunseong-dev/madang/internal/config"
	"github.com/yunseong-dev/madang/internal/usecases/modules/kis"
)

var (
	authOnce      sync.Once
	authSingleton *kis.Auth
)

// sharedAuth is the process-wide credential provider. Every usecase
// talking to the upstream uses the same instance, so the token cache
// is read and logged once.
func sharedAuth() *kis.Auth {
	authOnce.Do(func() {
		cfg := config.Get()
		authSingleton = kis.NewAuth(kis.AuthConfig{
			AppKey:    cfg.KIS.AppKey,
			AppSecret: cfg.KIS.AppSecret,
			RestURL:   cfg.KIS.RestURL,
			CachePath: cfg.KIS.TokenCachePath,
			Logger:    log.Get(),
		})
	})
	return authSingleton
}

type Feed interface {
	Start() error
	Stop()

	Subscribe(code string) error
	Unsubscribe(code string) error

	Connected() bool
	State() string
	ActiveCodes() []string
	WatcherCount(code string) uint
}

// feedUseCase owns the upstream connection and turns decoded records
// into bus events for the stream layer.
type feedUseCase struct {
	logger *log.Log
	bus    *eventbus.Bus

	supervisor *kis.Supervisor
}

func NewFeed() Feed {
	cfg := config.Get()
	uc := &feedUseCase{
		logger: log.Get(),
		bus:    eventbus.Get(),
	}
	uc.supervisor = kis.NewSupervisor(kis.SupervisorConfig{
		URL:     cfg.KIS.WSURL,
		Auth:    sharedAuth(),
		Logger:  uc.logger,
		Handler: uc.publishRecord,
	})
	return uc
}

func (uc *feedUseCase) publishRecord(record kis.Record) {
	uc.bus.PublishTopicEvent(topicFeedRecord, record)
	uc.bus.PublishTopicEvent(stockTopicPrefix+record.InstrumentCode(), record)
}

func (uc *feedUseCase) Start() error {
	return uc.supervisor.Start()
}

func (uc *feedUseCase) Stop() {
	uc.supervisor.Stop()
}

func (uc *feedUseCase) Subscribe(code string) error {
	if err := uc.supervisor.Subscribe(code); err != nil {
		return ErrInvalidInstrumentCode
	}
	return nil
}

func (uc *feedUseCase) Unsubscribe(code string) error {
	normalized, err := kis.NormalizeCode(code)
	if err != nil {
		return ErrInvalidInstrumentCode
	}
	uc.supervisor.Unsubscribe(normalized)
	return nil
}

func (uc *feedUseCase) Connected() bool {
	return uc.supervisor.State() == kis.StateConnected
}

func (uc *feedUseCase) State() string {
	return uc.supervisor.State().String()
}

func (uc *feedUseCase) ActiveCodes() []string {
	codes := uc.supervisor.ActiveCodes()
	sort.SliceStable(codes, func(i, j int) bool {
		return natural.Less(codes[i], codes[j])
	})
	return codes
}

func (uc *feedUseCase) WatcherCount(code string) uint {
	return uc.supervisor.WatcherCount(code)
}
