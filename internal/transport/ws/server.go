package ws

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"stargen.ai/internal/protocol"
	"stargen.ai/internal/sim/accrete"
	"stargen.ai/internal/sim/digest"
	"stargen.ai/internal/sim/rng"
	"stargen.ai/internal/sim/tuning"
)

// Recorder persists a generated system and returns its run id.
type Recorder interface {
	RecordRun(seed int64, tu tuning.Tuning, sys *accrete.System) (string, error)
}

type Config struct {
	Tuning       tuning.Tuning
	TuningDigest string
	// MaxConcurrent caps generations in flight across all connections.
	MaxConcurrent int
	// Recorder is optional.
	Recorder Recorder
	Logger   zerolog.Logger
}

type Server struct {
	cfg   Config
	log   zerolog.Logger
	slots chan struct{}

	upgrader websocket.Upgrader
}

func NewServer(cfg Config) *Server {
	if cfg.MaxConcurrent <= 0 {
		cfg.MaxConcurrent = 4
	}
	s := &Server{
		cfg:   cfg,
		log:   cfg.Logger,
		slots: make(chan struct{}, cfg.MaxConcurrent),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  16 * 1024,
			WriteBufferSize: 64 * 1024,
			CheckOrigin:     func(r *http.Request) bool { return true }, // dev default
		},
	}
	return s
}

// Routes registers /v1/ws and /healthz.
func (s *Server) Routes(mux *http.ServeMux) {
	mux.HandleFunc("/v1/ws", s.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"ok":               true,
			"protocol_version": protocol.Version,
			"in_flight":        len(s.slots),
		})
	})
}

func (s *Server) Handler() http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		conn, err := s.upgrader.Upgrade(rw, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		sessionID := uuid.NewString()
		log := s.log.With().Str("session", sessionID).Logger()
		if err := writeJSON(conn, protocol.WelcomeMsg{
			Type:            protocol.TypeWelcome,
			ProtocolVersion: protocol.Version,
			SessionID:       sessionID,
			TuningDigest:    s.cfg.TuningDigest,
			Moons:           s.cfg.Tuning.Moons,
		}); err != nil {
			return
		}

		ctx, cancel := context.WithCancel(r.Context())
		defer cancel()

		out := make(chan any, 8)
		done := make(chan struct{})

		// Writer goroutine.
		go func() {
			defer close(done)
			for {
				select {
				case <-ctx.Done():
					return
				case v := <-out:
					if err := writeJSON(conn, v); err != nil {
						cancel()
						return
					}
				}
			}
		}()

		// Reader loop.
		for {
			_ = conn.SetReadDeadline(time.Now().Add(60 * time.Second))
			_, msg, err := conn.ReadMessage()
			if err != nil {
				break
			}
			resp := s.handle(ctx, msg)
			select {
			case out <- resp:
			case <-ctx.Done():
			}
			if ctx.Err() != nil {
				break
			}
		}
		cancel()
		<-done
		log.Debug().Msg("session closed")
	}
}

func (s *Server) handle(ctx context.Context, msg []byte) any {
	base, err := protocol.DecodeBase(msg)
	if err != nil {
		return protocol.NewErrorMsg("", protocol.ErrProtoBadRequest, "malformed json")
	}
	if !protocol.CompatibleVersion(base.ProtocolVersion) {
		return protocol.NewErrorMsg(base.ReqID, protocol.ErrProtoBadRequest,
			fmt.Sprintf("unsupported protocol_version %q", base.ProtocolVersion))
	}
	if base.Type != protocol.TypeGenerate {
		return protocol.NewErrorMsg(base.ReqID, protocol.ErrBadRequest, fmt.Sprintf("unexpected message type %q", base.Type))
	}
	var req protocol.GenerateMsg
	if err := json.Unmarshal(msg, &req); err != nil {
		return protocol.NewErrorMsg(base.ReqID, protocol.ErrBadRequest, err.Error())
	}
	return s.Generate(ctx, req)
}

// Generate serves one GENERATE request and returns the SYSTEM or ERROR reply.
func (s *Server) Generate(ctx context.Context, req protocol.GenerateMsg) any {
	select {
	case s.slots <- struct{}{}:
	default:
		return protocol.NewErrorMsg(req.ReqID, protocol.ErrBusy, "too many generations in flight")
	}
	defer func() { <-s.slots }()
	if err := ctx.Err(); err != nil {
		return protocol.NewErrorMsg(req.ReqID, protocol.ErrInternal, err.Error())
	}

	var seed int64
	if req.Seed != nil {
		seed = *req.Seed
	} else {
		var err error
		if seed, err = rng.NewSeed(); err != nil {
			return protocol.NewErrorMsg(req.ReqID, protocol.ErrInternal, err.Error())
		}
	}
	tu := s.cfg.Tuning
	if req.Moons != nil {
		tu.Moons = *req.Moons
	}

	start := time.Now()
	sys, err := accrete.Generate(req.Config(), tu, rng.New(seed), accrete.Options{Logger: &s.log})
	if err != nil {
		code := protocol.CodeFor(err)
		ev := s.log.Warn()
		if code == protocol.ErrInternal {
			ev = s.log.Error()
		}
		ev.Err(err).Int64("seed", seed).Str("code", code).Msg("generate failed")
		return protocol.NewErrorMsg(req.ReqID, code, err.Error())
	}

	var runID string
	if s.cfg.Recorder != nil {
		if runID, err = s.cfg.Recorder.RecordRun(seed, tu, sys); err != nil {
			// The system is still returned; only persistence failed.
			s.log.Error().Err(err).Int64("seed", seed).Msg("record run")
		}
	}
	s.log.Info().
		Str("req_id", req.ReqID).
		Str("run_id", runID).
		Int64("seed", seed).
		Int("planets", sys.Planets()).
		Dur("elapsed", time.Since(start)).
		Msg("generated")
	return protocol.NewSystemMsg(req.ReqID, runID, seed, digest.SystemDigest(sys), sys)
}

func writeJSON(conn *websocket.Conn, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	_ = conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
	if err := conn.WriteMessage(websocket.TextMessage, b); err != nil {
		if errors.Is(err, websocket.ErrCloseSent) {
			return err
		}
		return fmt.Errorf("write %T: %w", v, err)
	}
	return nil
}
