package usecases

import (
	"context"
	"time"

	"github.com/chindada/leopard/pkg/log"
	"github.com/yunseong-dev/madang/internal/config"
	"github.com/yunseong-dev/madang/internal/usecases/entity"
	"github.com/yunseong-dev/madang/internal/usecases/modules/calendar"
	"github.com/yunseong-dev/madang/internal/usecases/modules/kis"
)

type Market interface {
	FluctuationRank(ctx context.Context) ([]kis.RankItem, error)
	VolumeRank(ctx context.Context) ([]kis.RankItem, error)
	CurrentPrice(ctx context.Context, code string) (*kis.PriceDetail, error)
	Status() *MarketStatus
}

// MarketStatus is the calendar view of the KRX session.
type MarketStatus struct {
	IsTradeDay  bool   `json:"is_trade_day"`
	IsOpen      bool   `json:"is_open"`
	SessionOpen string `json:"session_open"`
	SessionEnd  string `json:"session_end"`
}

type marketUseCase struct {
	logger *log.Log

	rest *kis.RestClient
	cal  calendar.Calendar
}

func NewMarket() Market {
	cfg := config.Get()
	return &marketUseCase{
		logger: log.Get(),
		rest: kis.NewRestClient(kis.RestClientConfig{
			BaseURL:   cfg.KIS.RestURL,
			AppKey:    cfg.KIS.AppKey,
			AppSecret: cfg.KIS.AppSecret,
			Auth:      sharedAuth(),
		}),
		cal: calendar.NewCalendar(),
	}
}

func (uc *marketUseCase) FluctuationRank(ctx context.Context) ([]kis.RankItem, error) {
	return uc.rest.FluctuationRank(ctx)
}

func (uc *marketUseCase) VolumeRank(ctx context.Context) ([]kis.RankItem, error) {
	return uc.rest.VolumeRank(ctx)
}

func (uc *marketUseCase) CurrentPrice(ctx context.Context, code string) (*kis.PriceDetail, error) {
	detail, err := uc.rest.CurrentPrice(ctx, code)
	if err != nil {
		uc.logger.Warnf("Current price for %s failed: %v", code, err)
		return nil, err
	}
	return detail, nil
}

func (uc *marketUseCase) Status() *MarketStatus {
	now := time.Now()
	session := uc.cal.TradeSession(now)
	return &MarketStatus{
		IsTradeDay:  uc.cal.IsTradeDay(now),
		IsOpen:      uc.cal.IsOpen(now),
		SessionOpen: session.Open.Format(entity.LongTimeLayout),
		SessionEnd:  session.Close.Format(entity.LongTimeLayout),
	}
}
