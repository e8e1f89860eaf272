// Package metrics counts what happens in the chat server and reports it,
// together with process health, over HTTP.
package metrics

import (
	"log/slog"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/samber/lo"
	"github.com/shirou/gopsutil/process"

	"github.com/Tyrowin/gochat-rooms/internal/room"
)

// RoomLister is the registry view the collector reads from.
type RoomLister interface {
	ListRooms() []room.Room
}

// Collector implements router.Observer with lock-free counters.
type Collector struct {
	rooms RoomLister
	log   *slog.Logger
	start time.Time
	now   func() time.Time

	connectedClients atomic.Int64
	totalConnections atomic.Int64
	roomsCreated     atomic.Int64
	roomsDeleted     atomic.Int64
	joins            atomic.Int64
	leaves           atomic.Int64
	messages         atomic.Int64

	procOnce sync.Once
	proc     *process.Process
}

// NewCollector creates a collector reading room state from rooms.
func NewCollector(rooms RoomLister, log *slog.Logger) *Collector {
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	return &Collector{
		rooms: rooms,
		log:   log,
		start: time.Now(),
		now:   time.Now,
	}
}

func (c *Collector) ClientConnected(string) {
	c.connectedClients.Add(1)
	c.totalConnections.Add(1)
}

func (c *Collector) ClientDisconnected(string) {
	c.connectedClients.Add(-1)
}

func (c *Collector) RoomCreated(room.Room) { c.roomsCreated.Add(1) }

func (c *Collector) RoomDeleted(room.Room) { c.roomsDeleted.Add(1) }

func (c *Collector) ParticipantJoined(string, string) { c.joins.Add(1) }

func (c *Collector) ParticipantLeft(string, string) { c.leaves.Add(1) }

func (c *Collector) MessageSent(room.Message) { c.messages.Add(1) }

// Snapshot is the body of GET /metrics.
type Snapshot struct {
	Timestamp         time.Time     `json:"timestamp"`
	Uptime            string        `json:"uptime"`
	UptimeSeconds     int64         `json:"uptimeSeconds"`
	ConnectedClients  int64         `json:"connectedClients"`
	TotalConnections  int64         `json:"totalConnections"`
	ActiveRooms       int           `json:"activeRooms"`
	TotalParticipants int           `json:"totalParticipants"`
	StoredMessages    int           `json:"storedMessages"`
	RoomsCreated      int64         `json:"roomsCreated"`
	RoomsDeleted      int64         `json:"roomsDeleted"`
	Joins             int64         `json:"joins"`
	Leaves            int64         `json:"leaves"`
	MessagesSent      int64         `json:"messagesSent"`
	Process           *ProcessStats `json:"process,omitempty"`
}

// ProcessStats describes the server process itself.
type ProcessStats struct {
	PID        int     `json:"pid"`
	RSSBytes   uint64  `json:"rssBytes"`
	CPUPercent float64 `json:"cpuPercent"`
}

// Snapshot reads every counter and the current room state.
func (c *Collector) Snapshot() Snapshot {
	rooms := c.rooms.ListRooms()
	uptime := c.uptime()

	return Snapshot{
		Timestamp:         c.now().UTC(),
		Uptime:            uptime.String(),
		UptimeSeconds:     int64(uptime / time.Second),
		ConnectedClients:  c.connectedClients.Load(),
		TotalConnections:  c.totalConnections.Load(),
		ActiveRooms:       len(rooms),
		TotalParticipants: lo.SumBy(rooms, func(r room.Room) int { return len(r.Participants) }),
		StoredMessages:    lo.SumBy(rooms, func(r room.Room) int { return len(r.Messages) }),
		RoomsCreated:      c.roomsCreated.Load(),
		RoomsDeleted:      c.roomsDeleted.Load(),
		Joins:             c.joins.Load(),
		Leaves:            c.leaves.Load(),
		MessagesSent:      c.messages.Load(),
		Process:           c.processStats(),
	}
}

// Health is the body of GET /health.
type Health struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
	Uptime    string    `json:"uptime"`
}

// Health reports liveness and uptime.
func (c *Collector) Health() Health {
	return Health{
		Status:    "ok",
		Timestamp: c.now().UTC(),
		Uptime:    c.uptime().String(),
	}
}

func (c *Collector) uptime() time.Duration {
	return c.now().Sub(c.start).Round(time.Second)
}

// processStats returns nil when the platform does not expose the numbers.
func (c *Collector) processStats() *ProcessStats {
	c.procOnce.Do(func() {
		p, err := process.NewProcess(int32(os.Getpid()))
		if err != nil {
			c.log.Warn("Process stats unavailable", "error", err)
			return
		}
		c.proc = p
	})
	if c.proc == nil {
		return nil
	}

	mem, err := c.proc.MemoryInfo()
	if err != nil {
		c.log.Warn("Failed to read process memory", "error", err)
		return nil
	}
	cpu, err := c.proc.CPUPercent()
	if err != nil {
		c.log.Debug("Failed to read process CPU", "error", err)
	}

	return &ProcessStats{
		PID:        os.Getpid(),
		RSSBytes:   mem.RSS,
		CPUPercent: cpu,
	}
}
