// Package channel carries inbound websocket frames from the session's
// read loop to the connector's single consumer goroutine. Serializing
// all translation and book mutation behind one channel keeps the
// no-concurrent-book-mutation invariant mechanical.
package channel

import (
	"context"
	"sync"

	"coinflow/logger"
	"coinflow/models"
)

type Stats struct {
	Sent    int64
	Dropped int64
}

type Channels struct {
	Raw chan models.RawFrame

	stats      Stats
	statsMutex sync.RWMutex
	log        *logger.Log
}

func NewChannels(rawBufferSize int, log *logger.Log) *Channels {
	c := &Channels{
		Raw: make(chan models.RawFrame, rawBufferSize),
		log: log,
	}
	log.WithComponent("frame_channels").WithFields(logger.Fields{
		"raw_buffer_size": rawBufferSize,
	}).Info("frame channel initialized")
	return c
}

func (c *Channels) Close() {
	close(c.Raw)
	c.log.WithComponent("frame_channels").Info("frame channel closed")
}

// SendRaw enqueues a frame without blocking the socket read loop. A
// full buffer drops the frame and reports false.
func (c *Channels) SendRaw(ctx context.Context, frame models.RawFrame) bool {
	select {
	case c.Raw <- frame:
		c.incrementSent()
		logger.RecordChannelMessage("raw_ws", len(frame.Data))
		return true
	case <-ctx.Done():
		return false
	default:
		c.incrementDropped()
		logger.IncrementFrameDropped()
		return false
	}
}

func (c *Channels) incrementSent() {
	c.statsMutex.Lock()
	c.stats.Sent++
	c.statsMutex.Unlock()
}

func (c *Channels) incrementDropped() {
	c.statsMutex.Lock()
	c.stats.Dropped++
	c.statsMutex.Unlock()
}

func (c *Channels) GetStats() Stats {
	c.statsMutex.RLock()
	defer c.statsMutex.RUnlock()
	return c.stats
}
