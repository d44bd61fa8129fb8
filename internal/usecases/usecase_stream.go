package usecases

import (
	"sync"
	"time"

	"github.com/chindada/leopard/pkg/eventbus"
	"github.com/chindada/leopard/pkg/log"
	"github.com/yunseong-dev/madang/internal/usecases/entity"
	"github.com/yunseong-dev/madang/internal/usecases/modules/kis"
)

type Stream interface {
	CreateQuoteClient(client *QuoteClient)
	CloseQuoteClient(clientID string)
	CreateSingleQuoteClient(code string, client *QuoteClient)
	CloseSingleQuoteClient(clientID, code string)

	BroadcastNotice(notice *entity.Notice)
}

// QuoteClient is one connected browser socket. Channels are closed by
// the usecase when the client is removed, never by the controller.
type QuoteClient struct {
	ClientID      string
	RecordChannel chan kis.Record
	NoticeChannel chan *entity.Notice
}

// streamUseCase fans feed records out to browser clients. Per-code
// clients are fed from the stock_<code> bus topics, all-quote clients
// from the shared record topic. Fan-out and client close hold the same
// lock, so a disconnect can never close a channel with a send in
// flight.
type streamUseCase struct {
	logger *log.Log
	bus    *eventbus.Bus

	singleQuoteClientMap  map[string][]*QuoteClient
	singleQuoteClientLock sync.RWMutex

	// Per-code topics stay subscribed once seen, mirroring the
	// subscription registry upstream.
	subscribedCodes map[string]struct{}

	quoteClientMap  map[string]*QuoteClient
	quoteClientLock sync.RWMutex
}

func NewStream() Stream {
	uc := &streamUseCase{
		logger:               log.Get(),
		bus:                  eventbus.Get(),
		singleQuoteClientMap: make(map[string][]*QuoteClient),
		subscribedCodes:      make(map[string]struct{}),
		quoteClientMap:       make(map[string]*QuoteClient),
	}
	uc.bus.SubscribeAsync(topicFeedRecord, false, uc.sendRecord)
	uc.bus.SubscribeAsync(topicFeedNotice, false, uc.sendNotice)
	return uc
}

func (uc *streamUseCase) sendRecord(record kis.Record) {
	uc.quoteClientLock.RLock()
	for _, client := range uc.quoteClientMap {
		client.RecordChannel <- record
	}
	uc.quoteClientLock.RUnlock()
}

func (uc *streamUseCase) sendSingleRecord(record kis.Record) {
	uc.singleQuoteClientLock.RLock()
	for _, client := range uc.singleQuoteClientMap[record.InstrumentCode()] {
		client.RecordChannel <- record
	}
	uc.singleQuoteClientLock.RUnlock()
}

func (uc *streamUseCase) sendNotice(notice *entity.Notice) {
	uc.quoteClientLock.RLock()
	for _, client := range uc.quoteClientMap {
		client.NoticeChannel <- notice
	}
	uc.quoteClientLock.RUnlock()
	uc.singleQuoteClientLock.RLock()
	for _, clients := range uc.singleQuoteClientMap {
		for _, client := range clients {
			client.NoticeChannel <- notice
		}
	}
	uc.singleQuoteClientLock.RUnlock()
}

// BroadcastNotice fans the notice out through the bus so every stream
// instance sees it, not just this one.
func (uc *streamUseCase) BroadcastNotice(notice *entity.Notice) {
	if notice.Time == "" {
		notice.Time = time.Now().Format(entity.LongTimeLayout)
	}
	uc.bus.PublishTopicEvent(topicFeedNotice, notice)
}

func (uc *streamUseCase) CreateQuoteClient(client *QuoteClient) {
	uc.quoteClientLock.Lock()
	uc.quoteClientMap[client.ClientID] = client
	uc.quoteClientLock.Unlock()
}

func (uc *streamUseCase) CloseQuoteClient(clientID string) {
	if clientID == "" {
		return
	}

	defer uc.quoteClientLock.Unlock()
	uc.quoteClientLock.Lock()

	if c, exist := uc.quoteClientMap[clientID]; exist {
		close(c.RecordChannel)
		close(c.NoticeChannel)
		delete(uc.quoteClientMap, clientID)
	}
}

func (uc *streamUseCase) CreateSingleQuoteClient(code string, client *QuoteClient) {
	uc.singleQuoteClientLock.Lock()
	if _, exist := uc.subscribedCodes[code]; !exist {
		uc.bus.SubscribeAsync(stockTopicPrefix+code, false, uc.sendSingleRecord)
		uc.subscribedCodes[code] = struct{}{}
	}
	uc.singleQuoteClientMap[code] = append(uc.singleQuoteClientMap[code], client)
	uc.singleQuoteClientLock.Unlock()
}

func (uc *streamUseCase) CloseSingleQuoteClient(clientID, code string) {
	if clientID == "" || code == "" {
		return
	}

	defer uc.singleQuoteClientLock.Unlock()
	uc.singleQuoteClientLock.Lock()

	clients := uc.singleQuoteClientMap[code]
	for i, c := range clients {
		if c.ClientID == clientID {
			close(c.RecordChannel)
			close(c.NoticeChannel)
			clients = append(clients[:i], clients[i+1:]...)
			break
		}
	}
	if len(clients) == 0 {
		delete(uc.singleQuoteClientMap, code)
	} else {
		uc.singleQuoteClientMap[code] = clients
	}
}
