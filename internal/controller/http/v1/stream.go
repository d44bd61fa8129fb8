package v1

import (
	"encoding/json"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/yunseong-dev/madang/internal/controller/http/resp"
	"github.com/yunseong-dev/madang/internal/controller/http/ws"
	"github.com/yunseong-dev/madang/internal/usecases"
	"github.com/yunseong-dev/madang/internal/usecases/entity"
	"github.com/yunseong-dev/madang/internal/usecases/modules/kis"
)

type streamRoutes struct {
	t usecases.Stream
	f usecases.Feed
}

func NewStreamRoutes(handler *gin.RouterGroup, wsg *gin.RouterGroup, t usecases.Stream, f usecases.Feed) {
	r := &streamRoutes{t: t, f: f}
	base := "/stream"
	h := handler.Group(base)
	{
		h.GET("/subscribe/codes", r.getAllSubscribeCodes)
	}
	w := wsg.Group(base)
	{
		w.GET("/quotes/trigger", r.streamAllQuotes)
		w.GET("/quotes/single/trigger", r.streamSingleQuote)
	}
}

// getAllSubscribeCodes /api/madang/v1/stream/subscribe/codes [get].
func (r *streamRoutes) getAllSubscribeCodes(c *gin.Context) {
	resp.Success(c, http.StatusOK, gin.H{"codes": r.f.ActiveCodes()})
}

// subscribeCommand is the inbound control message browsers send over
// the quote socket.
type subscribeCommand struct {
	Type  string   `json:"type"`
	Codes []string `json:"codes"`
}

// streamAllQuotes /ws/madang/v1/stream/quotes/trigger [get].
// An optional code query subscribes before the first command arrives.
func (r *streamRoutes) streamAllQuotes(c *gin.Context) {
	initial := c.Query("code")
	forwardChan := make(chan []byte)
	sock, err := ws.New(c, forwardChan)
	if err != nil {
		resp.Fail(c, http.StatusInternalServerError, err)
		return
	}
	clientID := uuid.NewString()
	go func() {
		watching := make(map[string]struct{})
		defer func() {
			r.t.CloseQuoteClient(clientID)
			for code := range watching {
				_ = r.f.Unsubscribe(code)
			}
		}()
		client := &usecases.QuoteClient{
			ClientID:      clientID,
			RecordChannel: make(chan kis.Record),
			NoticeChannel: make(chan *entity.Notice),
		}
		r.t.CreateQuoteClient(client)
		go r.sendRecord(sock, client.RecordChannel)
		go r.sendNotice(sock, client.NoticeChannel)
		if initial != "" {
			if sErr := r.f.Subscribe(initial); sErr == nil {
				watching[initial] = struct{}{}
			}
		}
		for {
			message, ok := <-forwardChan
			if !ok {
				return
			}
			r.handleCommand(message, watching)
		}
	}()
	sock.ReadMessage()
}

func (r *streamRoutes) handleCommand(message []byte, watching map[string]struct{}) {
	cmd := subscribeCommand{}
	if err := json.Unmarshal(message, &cmd); err != nil {
		return
	}
	switch cmd.Type {
	case "subscribe":
		for _, code := range cmd.Codes {
			if _, exist := watching[code]; exist {
				continue
			}
			if err := r.f.Subscribe(code); err != nil {
				continue
			}
			watching[code] = struct{}{}
		}
	case "unsubscribe":
		for _, code := range cmd.Codes {
			if _, exist := watching[code]; !exist {
				continue
			}
			_ = r.f.Unsubscribe(code)
			delete(watching, code)
		}
	}
}

// streamSingleQuote /ws/madang/v1/stream/quotes/single/trigger [get].
func (r *streamRoutes) streamSingleQuote(c *gin.Context) {
	code := c.Query("code")
	if code == "" {
		resp.Fail(c, http.StatusBadRequest, resp.ErrCodeRequired)
		return
	}
	normalized, err := kis.NormalizeCode(code)
	if err != nil {
		resp.Fail(c, http.StatusBadRequest, resp.ErrCodeInvalid)
		return
	}
	forwardChan := make(chan []byte)
	sock, wsErr := ws.New(c, forwardChan)
	if wsErr != nil {
		resp.Fail(c, http.StatusInternalServerError, wsErr)
		return
	}
	clientID := uuid.NewString()
	go func() {
		defer func() {
			r.t.CloseSingleQuoteClient(clientID, normalized)
			_ = r.f.Unsubscribe(normalized)
		}()
		if sErr := r.f.Subscribe(normalized); sErr != nil {
			return
		}
		client := &usecases.QuoteClient{
			ClientID:      clientID,
			RecordChannel: make(chan kis.Record),
			NoticeChannel: make(chan *entity.Notice),
		}
		r.t.CreateSingleQuoteClient(normalized, client)
		go r.sendRecord(sock, client.RecordChannel)
		go r.sendNotice(sock, client.NoticeChannel)
		for {
			_, ok := <-forwardChan
			if !ok {
				return
			}
		}
	}()
	sock.ReadMessage()
}

func (r *streamRoutes) sendRecord(sock ws.WS, channel chan kis.Record) {
	for record := range channel {
		b, err := json.Marshal(record)
		if err != nil {
			continue
		}
		sock.WriteTextMessage(b)
	}
}

func (r *streamRoutes) sendNotice(sock ws.WS, channel chan *entity.Notice) {
	for notice := range channel {
		b, err := json.Marshal(notice)
		if err != nil {
			continue
		}
		sock.WriteTextMessage(b)
	}
}
