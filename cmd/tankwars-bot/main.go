package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/gillesie/tankwars-online/internal/logging"
	"github.com/gillesie/tankwars-online/internal/modes"
	"github.com/gillesie/tankwars-online/internal/protocol"
	"github.com/gillesie/tankwars-online/internal/reconcile"
	"github.com/gillesie/tankwars-online/internal/sim"
)

const (
	frameBuf      = 256
	geometryCache = 4
	startEvery    = sim.TickRate // ticks between start requests while waiting as host
	joinTimeout   = 5 * time.Second
)

var errJoinRejected = errors.New("join rejected")

type options struct {
	url       string
	room      string
	name      string
	team      int
	password  string
	power     float64
	fireEvery time.Duration
	autoStart bool
}

type frame struct {
	binary bool
	data   []byte
}

func main() {
	var opts options
	flag.StringVar(&opts.url, "url", "ws://localhost:3000/ws", "Server websocket URL")
	flag.StringVar(&opts.room, "room", "bots", "Room to join or create")
	flag.StringVar(&opts.name, "name", "", "Display name (default: server assigned)")
	flag.IntVar(&opts.team, "team", 0, "Team: 1 blue, 2 red, 0 auto")
	flag.StringVar(&opts.password, "pw", "", "Room password")
	flag.Float64Var(&opts.power, "power", 18, "Launch power")
	flag.DurationVar(&opts.fireEvery, "fire-every", 2*time.Second, "Time between shots")
	flag.BoolVar(&opts.autoStart, "start", true, "Start the match when hosting and both teams are present")
	level := flag.String("log-level", "info", "Log level")
	flag.Parse()

	log, closer := logging.Setup(logging.Options{Level: *level})
	defer closer.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, opts, log); err != nil {
		log.Error().Err(err).Msg("bot stopped")
		stop()
		closer.Close()
		os.Exit(1)
	}
}

func run(ctx context.Context, opts options, log zerolog.Logger) error {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, opts.url, nil)
	if err != nil {
		return fmt.Errorf("dial %s: %w", opts.url, err)
	}
	defer conn.Close()

	err = send(conn, protocol.MsgJoin, protocol.JoinMsg{
		Room:     opts.room,
		Name:     opts.name,
		Team:     opts.team,
		Password: opts.password,
	})
	if err != nil {
		return err
	}
	init, err := awaitInit(conn)
	if err != nil {
		return err
	}

	cache, err := sim.NewGeometryCache(geometryCache)
	if err != nil {
		return err
	}
	defer cache.Close()

	sess, err := reconcile.NewSession(init, cache, log)
	if err != nil {
		return err
	}
	log.Info().Str("room", init.Room).Str("id", init.SelfID).Int("team", init.Team).Bool("host", init.IsHost).Msg("joined")

	fireTicks := int(opts.fireEvery.Seconds() * sim.TickRate)
	frames := make(chan frame, frameBuf)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return readLoop(gctx, conn, frames) })
	g.Go(func() error {
		defer conn.Close()
		return playLoop(gctx, conn, sess, frames, newPilot(opts.power, fireTicks), opts.autoStart, log)
	})
	return g.Wait()
}

func send(conn *websocket.Conn, t string, payload interface{}) error {
	raw, err := json.Marshal(protocol.Envelope{T: t, Data: payload})
	if err != nil {
		return fmt.Errorf("encode %s: %w", t, err)
	}
	return conn.WriteMessage(websocket.TextMessage, raw)
}

// awaitInit skips lobby traffic until the join is answered
func awaitInit(conn *websocket.Conn) (protocol.InitMsg, error) {
	conn.SetReadDeadline(time.Now().Add(joinTimeout))
	defer conn.SetReadDeadline(time.Time{})
	for {
		kind, raw, err := conn.ReadMessage()
		if err != nil {
			return protocol.InitMsg{}, fmt.Errorf("waiting for init: %w", err)
		}
		if kind != websocket.TextMessage {
			continue
		}
		env, err := protocol.DecodeEnvelope(raw)
		if err != nil {
			return protocol.InitMsg{}, err
		}
		switch env.T {
		case protocol.MsgInit:
			return protocol.DecodePayload[protocol.InitMsg](env)
		case protocol.MsgError:
			m, _ := protocol.DecodePayload[protocol.ErrorMsg](env)
			return protocol.InitMsg{}, fmt.Errorf("%w: %s", errJoinRejected, m.Msg)
		}
	}
}

// readLoop forwards frames to the play loop until the connection closes
func readLoop(ctx context.Context, conn *websocket.Conn, out chan<- frame) error {
	for {
		kind, raw, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("read: %w", err)
		}
		select {
		case out <- frame{binary: kind == websocket.BinaryMessage, data: raw}:
		case <-ctx.Done():
			return nil
		}
	}
}

// playLoop owns the session: it applies room traffic, steps the world at
// the simulation rate and sends what the step produced
func playLoop(ctx context.Context, conn *websocket.Conn, sess *reconcile.Session, frames <-chan frame, p *pilot, autoStart bool, log zerolog.Logger) error {
	ticker := time.NewTicker(time.Second / sim.TickRate)
	defer ticker.Stop()

	var tick int
	for {
		select {
		case <-ctx.Done():
			return nil
		case f := <-frames:
			apply(sess, f, log)
			if sess.Status == protocol.StatusOver {
				log.Info().Str("winner", sess.Winner).Msg("match over")
				return nil
			}
		case <-ticker.C:
			tick++
			if autoStart && sess.Host && sess.Status == protocol.StatusLobby && tick%startEvery == 0 && bothTeams(sess) {
				if err := send(conn, protocol.MsgStartGame, nil); err != nil {
					return err
				}
			}

			in, fire := p.next(sess)
			sess.SetIntent(in)
			if fire {
				sess.Fire(p.power)
			}
			for _, env := range sess.Step() {
				if err := send(conn, env.T, env.Data); err != nil {
					return err
				}
			}
		}
	}
}

func apply(sess *reconcile.Session, f frame, log zerolog.Logger) {
	if f.binary {
		snap, err := protocol.DecodeSnapshot(f.data)
		if err != nil {
			log.Debug().Err(err).Msg("bad snapshot")
			return
		}
		sess.ApplySnapshot(snap)
		return
	}
	env, err := protocol.DecodeEnvelope(f.data)
	if err != nil {
		log.Debug().Err(err).Msg("bad message")
		return
	}
	if err := sess.Apply(env); err != nil {
		log.Debug().Err(err).Str("type", env.T).Msg("apply")
	}
}

func bothTeams(sess *reconcile.Session) bool {
	var blue, red bool
	for _, t := range sess.World.Tanks {
		switch t.Team {
		case modes.TeamBlue:
			blue = true
		case modes.TeamRed:
			red = true
		}
	}
	return blue && red
}
