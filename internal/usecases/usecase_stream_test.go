package usecases

import (
	"os"
	"testing"
	"time"

	"github.com/chindada/leopard/pkg/log"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yunseong-dev/madang/internal/usecases/entity"
	"github.com/yunseong-dev/madang/internal/usecases/modules/kis"
)

func TestMain(m *testing.M) {
	log.Init()
	os.Exit(m.Run())
}

func newQuoteClient() *QuoteClient {
	return &QuoteClient{
		ClientID:      uuid.NewString(),
		RecordChannel: make(chan kis.Record, 16),
		NoticeChannel: make(chan *entity.Notice, 16),
	}
}

func testTick(code string) *kis.Tick {
	return &kis.Tick{Code: code, Price: 71000}
}

func TestStreamSendRecordToAllClients(t *testing.T) {
	uc, ok := NewStream().(*streamUseCase)
	require.True(t, ok)

	all := newQuoteClient()
	uc.CreateQuoteClient(all)
	single := newQuoteClient()
	uc.CreateSingleQuoteClient("005930", single)
	other := newQuoteClient()
	uc.CreateSingleQuoteClient("000660", other)

	uc.sendRecord(testTick("005930"))
	uc.sendSingleRecord(testTick("005930"))

	require.Len(t, all.RecordChannel, 1)
	require.Len(t, single.RecordChannel, 1)
	assert.Empty(t, other.RecordChannel)

	record := <-single.RecordChannel
	assert.Equal(t, "005930", record.InstrumentCode())
}

func TestStreamCloseQuoteClient(t *testing.T) {
	uc, ok := NewStream().(*streamUseCase)
	require.True(t, ok)

	client := newQuoteClient()
	uc.CreateQuoteClient(client)
	uc.CloseQuoteClient(client.ClientID)

	_, open := <-client.RecordChannel
	assert.False(t, open)
	_, open = <-client.NoticeChannel
	assert.False(t, open)

	// Closing again or closing unknown ids is a no-op.
	uc.CloseQuoteClient(client.ClientID)
	uc.CloseQuoteClient("")

	uc.sendRecord(testTick("005930"))
}

func TestStreamCloseSingleQuoteClient(t *testing.T) {
	uc, ok := NewStream().(*streamUseCase)
	require.True(t, ok)

	first := newQuoteClient()
	second := newQuoteClient()
	uc.CreateSingleQuoteClient("005930", first)
	uc.CreateSingleQuoteClient("005930", second)

	uc.CloseSingleQuoteClient(first.ClientID, "005930")
	_, open := <-first.RecordChannel
	assert.False(t, open)

	uc.sendSingleRecord(testTick("005930"))
	require.Len(t, second.RecordChannel, 1)

	uc.CloseSingleQuoteClient(second.ClientID, "005930")
	uc.sendSingleRecord(testTick("005930"))

	uc.CloseSingleQuoteClient("", "005930")
	uc.CloseSingleQuoteClient(second.ClientID, "")
}

func TestStreamCloseSingleQuoteClientDuringSend(t *testing.T) {
	uc, ok := NewStream().(*streamUseCase)
	require.True(t, ok)

	client := &QuoteClient{
		ClientID:      uuid.NewString(),
		RecordChannel: make(chan kis.Record),
		NoticeChannel: make(chan *entity.Notice),
	}
	uc.CreateSingleQuoteClient("005930", client)

	sent := make(chan struct{})
	go func() {
		defer close(sent)
		uc.sendSingleRecord(testTick("005930"))
	}()
	// Let the fan-out block on the unbuffered channel.
	time.Sleep(50 * time.Millisecond)

	closed := make(chan struct{})
	go func() {
		defer close(closed)
		uc.CloseSingleQuoteClient(client.ClientID, "005930")
	}()

	// The close must wait for the in-flight send instead of closing
	// the channel under it.
	select {
	case <-closed:
		t.Fatal("client closed while a record was in flight")
	case <-time.After(50 * time.Millisecond):
	}

	record, open := <-client.RecordChannel
	require.True(t, open)
	assert.Equal(t, "005930", record.InstrumentCode())

	<-sent
	select {
	case <-closed:
	case <-time.After(3 * time.Second):
		t.Fatal("close did not finish after the send drained")
	}
	_, open = <-client.RecordChannel
	assert.False(t, open)
}

func TestStreamSendNotice(t *testing.T) {
	uc, ok := NewStream().(*streamUseCase)
	require.True(t, ok)

	all := newQuoteClient()
	uc.CreateQuoteClient(all)
	single := newQuoteClient()
	uc.CreateSingleQuoteClient("005930", single)

	uc.sendNotice(&entity.Notice{Title: "maintenance", Message: "restart at 18:00"})

	require.Len(t, all.NoticeChannel, 1)
	require.Len(t, single.NoticeChannel, 1)
	notice := <-all.NoticeChannel
	assert.Equal(t, "maintenance", notice.Title)
}

func TestStreamBroadcastNoticeViaBus(t *testing.T) {
	uc, ok := NewStream().(*streamUseCase)
	require.True(t, ok)

	client := newQuoteClient()
	uc.CreateQuoteClient(client)

	uc.BroadcastNotice(&entity.Notice{Title: "hello", Message: "world"})

	select {
	case notice := <-client.NoticeChannel:
		assert.Equal(t, "hello", notice.Title)
		assert.NotEmpty(t, notice.Time)
	case <-time.After(3 * time.Second):
		t.Fatal("notice did not arrive through the bus")
	}
}
