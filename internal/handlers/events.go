package handlers

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"stakeledger/internal/models"
	dbconfig "stakeledger/pkg/config"
)

const (
	streamBatch     = 100
	writeWait       = 10 * time.Second
	pongWait        = 60 * time.Second
	pingPeriod      = pongWait * 9 / 10
	defaultPollWait = time.Second
)

// StreamPollInterval is how often the websocket stream checks for new events.
var StreamPollInterval = defaultPollWait

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// eventQuery selects events after a sequence number, optionally for one pool.
func eventQuery(db *gorm.DB, after uint64, pool string, limit int) ([]models.LedgerEvent, error) {
	q := db.Where("id > ?", after)
	if pool != "" {
		q = q.Where("pool = ?", pool)
	}
	var events []models.LedgerEvent
	err := q.Order("id").Limit(limit).Find(&events).Error
	return events, err
}

func queryAfter(c *gin.Context) (uint64, bool) {
	raw := c.Query("after")
	if raw == "" {
		return 0, true
	}
	after, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid after"})
		return 0, false
	}
	return after, true
}

func queryPool(c *gin.Context) (string, bool) {
	raw := c.Query("pool")
	if raw == "" {
		return "", true
	}
	key, err := parseKey(raw)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid pool"})
		return "", false
	}
	return key.String(), true
}

// ListEvents returns ledger events in sequence order after ?after=
func ListEvents(c *gin.Context) {
	after, ok := queryAfter(c)
	if !ok {
		return
	}
	pool, ok := queryPool(c)
	if !ok {
		return
	}
	limit, ok := queryLimit(c)
	if !ok {
		return
	}

	events, err := eventQuery(dbconfig.DB, after, pool, limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	resp := make([]EventResp, 0, len(events))
	for i := range events {
		resp = append(resp, eventResp(&events[i]))
	}
	c.JSON(http.StatusOK, resp)
}

// StreamEvents upgrades to a websocket and pushes every event after ?after=
// as it is committed, one JSON message per event.
func StreamEvents(c *gin.Context) {
	after, ok := queryAfter(c)
	if !ok {
		return
	}
	pool, ok := queryPool(c)
	if !ok {
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.WithError(err).Warn("websocket upgrade failed")
		return
	}
	defer conn.Close()

	logger := log.WithFields(log.Fields{"remote_addr": c.ClientIP(), "after": after})
	logger.Info("event stream connected")

	ctx, cancel := context.WithCancel(c.Request.Context())
	defer cancel()

	// The client sends nothing we act on; reading surfaces close frames
	// and keeps pong handling running.
	conn.SetReadLimit(512)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	go func() {
		defer cancel()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	cursor, err := streamEvents(ctx, conn, after, pool)
	logger = logger.WithField("cursor", cursor)
	if err != nil && ctx.Err() == nil {
		logger.WithError(err).Warn("event stream closed")
		return
	}
	logger.Info("event stream disconnected")
}

// streamEvents writes events until ctx is done or a write fails and
// returns the last sequence number sent.
func streamEvents(ctx context.Context, conn *websocket.Conn, cursor uint64, pool string) (uint64, error) {
	poll := time.NewTicker(StreamPollInterval)
	defer poll.Stop()
	ping := time.NewTicker(pingPeriod)
	defer ping.Stop()

	for {
		// Drain everything already committed before waiting again.
		for {
			events, err := eventQuery(dbconfig.DB.WithContext(ctx), cursor, pool, streamBatch)
			if err != nil {
				return cursor, err
			}
			for i := range events {
				_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
				if err := conn.WriteJSON(eventResp(&events[i])); err != nil {
					return cursor, err
				}
				cursor = events[i].ID
			}
			if len(events) < streamBatch {
				break
			}
		}

		select {
		case <-ctx.Done():
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(writeWait))
			return cursor, nil
		case <-ping.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				return cursor, err
			}
		case <-poll.C:
		}
	}
}
