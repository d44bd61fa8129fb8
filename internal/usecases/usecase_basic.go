package usecases

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/chindada/leopard/pkg/eventbus"
	"github.com/chindada/leopard/pkg/log"
	"github.com/go-co-op/gocron/v2"
	"github.com/yunseong-dev/madang/internal/config"
	"github.com/yunseong-dev/madang/internal/usecases/entity"
	"github.com/yunseong-dev/madang/internal/usecases/modules/calendar"
	"github.com/yunseong-dev/madang/internal/usecases/modules/kis"
	"github.com/yunseong-dev/madang/internal/usecases/repo"
)

const batchSize = 2000

// Last-close snapshots are flushed after the session settles.
const (
	flushHour   = 16
	flushMinute = 0
)

type Basic interface {
	GetAllInstrument(ctx context.Context) ([]*entity.Instrument, error)
	GetInstrumentByCode(ctx context.Context, code string) (*entity.Instrument, error)
	UpdateInstruments(ctx context.Context, instruments []*entity.Instrument) error

	Stop()
}

// basicUseCase keeps the instrument master. It caches the latest trade
// price per code from the feed and writes it back as the last close on
// a daily schedule.
type basicUseCase struct {
	calendar  calendar.Calendar
	basicRepo repo.BasicRepo

	logger *log.Log
	bus    *eventbus.Bus

	scheduler gocron.Scheduler

	lastPrice sync.Map // code -> int64
}

func NewBasic() Basic {
	cfg := config.Get()
	pg := cfg.GetPostgresPool()
	uc := &basicUseCase{
		calendar:  calendar.NewCalendar(),
		basicRepo: repo.NewBasic(pg),
		logger:    log.Get(),
		bus:       eventbus.Get(),
	}
	uc.bus.SubscribeAsync(topicFeedRecord, false, uc.cacheLastPrice)
	scheduler, err := gocron.NewScheduler()
	if err != nil {
		uc.logger.Fatalf("Failed to create scheduler: %v", err)
	}
	uc.scheduler = scheduler
	_, err = uc.scheduler.NewJob(
		gocron.DailyJob(1, gocron.NewAtTimes(gocron.NewAtTime(flushHour, flushMinute, 0))),
		gocron.NewTask(uc.flushLastClose),
	)
	if err != nil {
		uc.logger.Fatalf("Failed to schedule last close flush: %v", err)
	}
	uc.scheduler.Start()
	return uc
}

func (uc *basicUseCase) Stop() {
	if err := uc.scheduler.Shutdown(); err != nil {
		uc.logger.Warnf("Scheduler shutdown: %v", err)
	}
}

func (uc *basicUseCase) cacheLastPrice(record kis.Record) {
	tick, ok := record.(*kis.Tick)
	if !ok {
		return
	}
	uc.lastPrice.Store(tick.Code, tick.Price)
}

func (uc *basicUseCase) flushLastClose() {
	now := time.Now()
	if !uc.calendar.IsTradeDay(now) {
		return
	}
	closeDate := uc.calendar.NextTradeDay(now)
	count := 0
	uc.lastPrice.Range(func(key, value any) bool {
		code, _ := key.(string)
		price, _ := value.(int64)
		if err := uc.basicRepo.UpdateInstrumentLastClose(context.Background(), code, price, closeDate); err != nil {
			uc.logger.Errorf("Failed to store last close for %s: %v", code, err)
			return true
		}
		uc.lastPrice.Delete(key)
		count++
		return true
	})
	if count == 0 {
		return
	}
	uc.logger.Infof("Stored last close for %d instruments", count)
	uc.bus.PublishTopicEvent(topicFeedNotice, &entity.Notice{
		Title:   "market close",
		Message: fmt.Sprintf("last close stored for %d instruments", count),
		Time:    now.Format(entity.LongTimeLayout),
	})
}

func (uc *basicUseCase) GetAllInstrument(ctx context.Context) ([]*entity.Instrument, error) {
	return uc.basicRepo.SelectAllInstrument(ctx)
}

func (uc *basicUseCase) GetInstrumentByCode(ctx context.Context, code string) (*entity.Instrument, error) {
	normalized, err := kis.NormalizeCode(code)
	if err != nil {
		return nil, ErrInvalidInstrumentCode
	}
	instrument, err := uc.basicRepo.SelectInstrumentByCode(ctx, normalized)
	if err != nil {
		if errors.Is(err, repo.ErrInstrumentNotFound) {
			return nil, ErrInstrumentNotFound
		}
		return nil, err
	}
	return instrument, nil
}

func (uc *basicUseCase) UpdateInstruments(ctx context.Context, instruments []*entity.Instrument) error {
	for i := 0; i < len(instruments); i += batchSize {
		end := min(i+batchSize, len(instruments))
		if err := uc.basicRepo.InsertInstrument(ctx, instruments[i:end]); err != nil {
			return err
		}
	}
	return nil
}
