package main

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"stargen.ai/internal/protocol"
	"stargen.ai/internal/sim/accrete"
	"stargen.ai/internal/sim/digest"
	"stargen.ai/internal/sim/rng"
	"stargen.ai/internal/sim/tuning"
	"stargen.ai/internal/transport/ws"
)

func dialBot(t *testing.T) *bot {
	t.Helper()
	srv := ws.NewServer(ws.Config{Tuning: tuning.Defaults(), TuningDigest: "td", Logger: zerolog.Nop()})
	mux := http.NewServeMux()
	srv.Routes(mux)
	ts := httptest.NewServer(mux)
	t.Cleanup(ts.Close)

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(ts.URL, "http")+"/v1/ws", nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close() })
	return &bot{conn: conn, log: zerolog.Nop()}
}

func TestBot_WelcomeAndGenerate(t *testing.T) {
	b := dialBot(t)
	w, err := b.welcome()
	if err != nil {
		t.Fatalf("welcome: %v", err)
	}
	if w.TuningDigest != "td" || !w.Moons {
		t.Fatalf("welcome=%+v", w)
	}

	out, err := b.generate("r1", 42, 1, nil)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	sys, err := accrete.Generate(accrete.SolarConfig(), tuning.Defaults(), rng.New(42), accrete.Options{})
	if err != nil {
		t.Fatalf("local generate: %v", err)
	}
	if out.Code != "" || out.Digest != digest.SystemDigest(sys) || out.Planets != sys.Planets() || out.Moons != sys.Moons() {
		t.Fatalf("outcome=%+v want planets=%d moons=%d", out, sys.Planets(), sys.Moons())
	}

	off := false
	out, err = b.generate("r2", 42, 1, &off)
	if err != nil {
		t.Fatalf("generate no moons: %v", err)
	}
	if out.Moons != 0 {
		t.Fatalf("moons=%d with capture off", out.Moons)
	}
}

func TestBot_ErrorReply(t *testing.T) {
	b := dialBot(t)
	if _, err := b.welcome(); err != nil {
		t.Fatalf("welcome: %v", err)
	}
	out, err := b.generate("bad", 1, -1, nil)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if out.Code != protocol.ErrInvalidParameter {
		t.Fatalf("code=%q", out.Code)
	}
}
