package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"stargen.ai/internal/observability"
	"stargen.ai/internal/protocol"
)

// bot drives a generation server over one websocket session.
type bot struct {
	conn *websocket.Conn
	log  zerolog.Logger
}

type outcome struct {
	Seed    int64
	Digest  string
	Planets int
	Moons   int
	Code    string
	Took    time.Duration
}

func main() {
	var (
		url   = flag.String("url", "ws://localhost:8080/v1/ws", "ws url")
		seed  = flag.Int64("seed", 1, "first seed")
		count = flag.Int("count", 10, "number of GENERATE requests")
		mass  = flag.Float64("mass", 1.0, "stellar mass in solar masses")
		moons = flag.String("moons", "", "override moon capture: true, false or empty for the server default")
	)
	flag.Parse()

	logger := observability.InitLogger("bot")
	conn, _, err := websocket.DefaultDialer.Dial(*url, nil)
	if err != nil {
		logger.Fatal().Err(err).Msg("dial")
	}
	defer conn.Close()

	b := &bot{conn: conn, log: logger}
	welcome, err := b.welcome()
	if err != nil {
		logger.Fatal().Err(err).Msg("welcome")
	}
	logger.Info().Str("session", welcome.SessionID).Str("tuning_digest", welcome.TuningDigest).Bool("moons", welcome.Moons).Msg("WELCOME")

	var moonsOverride *bool
	switch *moons {
	case "true", "false":
		v := *moons == "true"
		moonsOverride = &v
	case "":
	default:
		logger.Fatal().Str("moons", *moons).Msg("bad -moons")
	}

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt)

	var planets, failed int
	start := time.Now()
	for i := 0; i < *count; i++ {
		select {
		case <-stop:
			return
		default:
		}
		out, err := b.generate(fmt.Sprintf("req_%d", i), *seed+int64(i), *mass, moonsOverride)
		if err != nil {
			logger.Fatal().Err(err).Msg("generate")
		}
		if out.Code != "" {
			failed++
			logger.Warn().Int64("seed", out.Seed).Str("code", out.Code).Msg("ERROR")
			continue
		}
		planets += out.Planets
		logger.Info().Int64("seed", out.Seed).Int("planets", out.Planets).Int("moons", out.Moons).
			Str("digest", out.Digest).Dur("took", out.Took).Msg("SYSTEM")
	}
	logger.Info().
		Str("requests", humanize.Comma(int64(*count))).
		Int("failed", failed).
		Int("planets", planets).
		Str("elapsed", humanize.RelTime(start, time.Now(), "", "")).
		Msg("done")
}

func (b *bot) welcome() (protocol.WelcomeMsg, error) {
	var w protocol.WelcomeMsg
	msg, err := b.read()
	if err != nil {
		return w, err
	}
	if err := json.Unmarshal(msg, &w); err != nil {
		return w, err
	}
	if w.Type != protocol.TypeWelcome {
		return w, fmt.Errorf("expected WELCOME, got %s", w.Type)
	}
	if !protocol.CompatibleVersion(w.ProtocolVersion) {
		return w, fmt.Errorf("server protocol %s, want %s", w.ProtocolVersion, protocol.Version)
	}
	return w, nil
}

// generate sends one GENERATE and waits for the reply carrying its req id.
func (b *bot) generate(reqID string, seed int64, mass float64, moons *bool) (outcome, error) {
	out := outcome{Seed: seed}
	start := time.Now()
	req := protocol.GenerateMsg{
		Type:            protocol.TypeGenerate,
		ProtocolVersion: protocol.Version,
		ReqID:           reqID,
		Seed:            &seed,
		StellarMass:     mass,
		Moons:           moons,
	}
	if err := b.conn.WriteJSON(req); err != nil {
		return out, fmt.Errorf("send GENERATE: %w", err)
	}
	for {
		msg, err := b.read()
		if err != nil {
			return out, err
		}
		base, err := protocol.DecodeBase(msg)
		if err != nil || base.ReqID != reqID {
			continue
		}
		out.Took = time.Since(start)
		switch base.Type {
		case protocol.TypeSystem:
			var sys protocol.SystemMsg
			if err := json.Unmarshal(msg, &sys); err != nil {
				return out, err
			}
			out.Digest = sys.Digest
			out.Planets = len(sys.Planets)
			for _, p := range sys.Planets {
				out.Moons += len(p.Moons)
			}
			return out, nil
		case protocol.TypeError:
			var e protocol.ErrorMsg
			if err := json.Unmarshal(msg, &e); err != nil {
				return out, err
			}
			out.Code = e.Code
			return out, nil
		}
	}
}

func (b *bot) read() ([]byte, error) {
	_ = b.conn.SetReadDeadline(time.Now().Add(2 * time.Minute))
	_, msg, err := b.conn.ReadMessage()
	return msg, err
}
