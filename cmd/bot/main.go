package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"math"
	"math/rand"
	"os"
	"os/signal"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"harvestcraft.ai/internal/protocol"
)

type bot struct {
	conn   *websocket.Conn
	logger *log.Logger
	rng    *rand.Rand

	wmu sync.Mutex
	seq int

	mu      sync.Mutex
	x, z    float64
	target  *protocol.BlockCell
	farmed  map[[2]int]string
	chunks  int
	crops   []string
	walkDir float64
}

func (b *bot) write(v any) error {
	b.wmu.Lock()
	defer b.wmu.Unlock()
	return b.conn.WriteJSON(v)
}

func (b *bot) nextID(kind string) string {
	b.wmu.Lock()
	defer b.wmu.Unlock()
	b.seq++
	return fmt.Sprintf("%s_%d", kind, b.seq)
}

func main() {
	var (
		url   = flag.String("url", "ws://localhost:8080/v1/ws", "ws url")
		name  = flag.String("name", "bot", "viewer name")
		step  = flag.Duration("step", 2*time.Second, "time between moves")
		speed = flag.Float64("speed", 6, "cells per move")
		seed  = flag.Int64("rng_seed", 0, "random walk seed (0 = time)")
	)
	flag.Parse()

	logger := log.New(os.Stdout, "[bot] ", log.LstdFlags|log.Lmicroseconds)
	conn, _, err := websocket.DefaultDialer.Dial(*url, nil)
	if err != nil {
		logger.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	if *seed == 0 {
		*seed = time.Now().UnixNano()
	}
	b := &bot{
		conn:   conn,
		logger: logger,
		rng:    rand.New(rand.NewSource(*seed)),
		farmed: map[[2]int]string{},
	}
	if err := b.write(protocol.HelloMsg{Type: protocol.TypeHello, ProtocolVersion: protocol.Version, Name: *name}); err != nil {
		logger.Fatalf("send HELLO: %v", err)
	}

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt)
	done := make(chan struct{})
	go func() {
		defer close(done)
		b.readLoop()
	}()

	t := time.NewTicker(*step)
	defer t.Stop()
	for {
		select {
		case <-stop:
			return
		case <-done:
			return
		case <-t.C:
			b.act(*speed)
		}
	}
}

func (b *bot) readLoop() {
	for {
		_, msg, err := b.conn.ReadMessage()
		if err != nil {
			b.logger.Printf("read: %v", err)
			return
		}
		base, err := protocol.DecodeBase(msg)
		if err != nil {
			continue
		}
		switch base.Type {
		case protocol.TypeWelcome:
			var w protocol.WelcomeMsg
			if err := json.Unmarshal(msg, &w); err != nil {
				continue
			}
			b.mu.Lock()
			b.crops = w.Crops
			b.mu.Unlock()
			b.logger.Printf("WELCOME session=%s world=%s seed=%d render_distance=%d", w.SessionID, w.WorldID, w.Seed, w.RenderDistance)
		case protocol.TypeChunks:
			var m protocol.ChunksMsg
			if err := json.Unmarshal(msg, &m); err != nil {
				continue
			}
			b.mu.Lock()
			b.chunks += len(m.Entered) - len(m.Left)
			n := b.chunks
			b.mu.Unlock()
			if len(m.Entered) > 0 || len(m.Left) > 0 {
				b.logger.Printf("CHUNKS center=%v +%d -%d pending=%d holding=%d", m.Center, len(m.Entered), len(m.Left), m.Pending, n)
			}
		case protocol.TypeUnderground:
			var m protocol.UndergroundMsg
			if err := json.Unmarshal(msg, &m); err != nil || len(m.Blocks) == 0 {
				continue
			}
			blk := m.Blocks[0]
			b.mu.Lock()
			b.target = &blk
			b.mu.Unlock()
		case protocol.TypeActResult:
			var r protocol.ActResultMsg
			if err := json.Unmarshal(msg, &r); err != nil {
				continue
			}
			if r.OK {
				b.logger.Printf("ACT %s %s ok block=%s drop=%s plot=%s item=%s x%d", r.ID, r.Kind, r.Block, r.Drop, r.Plot, r.Item, r.Count)
			} else {
				b.logger.Printf("ACT %s %s failed %s: %s", r.ID, r.Kind, r.Code, r.Message)
			}
		case protocol.TypeError:
			var e protocol.ErrorMsg
			if err := json.Unmarshal(msg, &e); err == nil {
				b.logger.Printf("ERROR %s: %s", e.Code, e.Message)
			}
		}
	}
}

// act walks a little, then mines the nearest block or tends a plot.
func (b *bot) act(speed float64) {
	b.mu.Lock()
	b.walkDir += (b.rng.Float64() - 0.5) * math.Pi / 2
	b.x += math.Cos(b.walkDir) * speed
	b.z += math.Sin(b.walkDir) * speed
	x, z := b.x, b.z
	target := b.target
	b.target = nil
	roll := b.rng.Intn(4)
	crops := b.crops
	b.mu.Unlock()

	if err := b.write(protocol.MoveMsg{Type: protocol.TypeMove, ProtocolVersion: protocol.Version, X: x, Z: z}); err != nil {
		b.logger.Printf("send MOVE: %v", err)
		return
	}

	switch {
	case roll == 0 && target != nil:
		_ = b.write(protocol.ActMsg{
			Type: protocol.TypeAct, ProtocolVersion: protocol.Version, ID: b.nextID("mine"),
			Kind: protocol.ActMine, Pos: target.Pos[:], Tool: toolFor(target.Block),
		})
	case roll == 1:
		b.farm(int(math.Floor(x)), int(math.Floor(z)), crops)
	}
}

// farm advances the plot under the bot one step through its cycle.
func (b *bot) farm(x, z int, crops []string) {
	cell := [2]int{x, z}
	b.mu.Lock()
	state := b.farmed[cell]
	b.mu.Unlock()
	msg := protocol.ActMsg{Type: protocol.TypeAct, ProtocolVersion: protocol.Version, Pos: []int{x, z}}
	switch state {
	case "":
		msg.Kind, state = protocol.ActTill, "tilled"
	case "tilled":
		if len(crops) == 0 {
			return
		}
		msg.Kind, msg.Crop, state = protocol.ActPlant, crops[b.rng.Intn(len(crops))], "planted"
	case "planted":
		msg.Kind, state = protocol.ActWater, "watered"
	default:
		msg.Kind, state = protocol.ActHarvest, "tilled"
	}
	msg.ID = b.nextID(msg.Kind)
	if err := b.write(msg); err != nil {
		return
	}
	b.mu.Lock()
	b.farmed[cell] = state
	b.mu.Unlock()
}

func toolFor(block string) string {
	switch block {
	case "GRASS", "DIRT":
		return "shovel"
	case "WOOD":
		return "axe"
	default:
		return "pickaxe"
	}
}
