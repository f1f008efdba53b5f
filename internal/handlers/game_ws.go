// internal/handlers/game_ws.go
package handlers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/coder/websocket"
	"github.com/sirupsen/logrus"

	"github.com/inklobby/inklobby/internal/config"
	"github.com/inklobby/inklobby/internal/epoch"
	"github.com/inklobby/inklobby/internal/lobby"
	"github.com/inklobby/inklobby/internal/middleware"
	"github.com/inklobby/inklobby/internal/models"
)

const writeTimeout = 5 * time.Second

// GameWSHandler upgrades the connection and runs one client session: join
// handshake, lobby attach, then the forwarding loop until the socket closes,
// the session is killed, or the client falls behind the broadcast stream.
func GameWSHandler(logger *logrus.Logger, reg *lobby.Registry) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c, err := websocket.Accept(w, r, &websocket.AcceptOptions{
			Subprotocols:   []string{"game"},
			OriginPatterns: []string{"*"}, // Adjust for production security.
		})
		if err != nil {
			logger.Warnf("WebSocket accept error: %v", err)
			return
		}
		c.SetReadLimit(config.MaxWSMessageBytes)
		defer c.Close(websocket.StatusInternalError, "session ended")

		middleware.LogWebSocketConnect(logger, r.RemoteAddr, r.URL.Path)
		err = runSession(r.Context(), c, reg, logger)
		middleware.LogWebSocketDisconnect(logger, r.RemoteAddr, r.URL.Path, err)

		c.Close(websocket.StatusNormalClosure, "")
	}
}

func runSession(ctx context.Context, c *websocket.Conn, reg *lobby.Registry, logger *logrus.Logger) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	// First frame must be Join; anything else closes the connection.
	join, err := readJoin(ctx, c)
	if err != nil {
		c.Close(websocket.StatusPolicyViolation, "expected join")
		return fmt.Errorf("handshake: %w", err)
	}

	uid := models.DeriveUserID(join.Nickname)
	ep := epoch.NextSession()
	log := logger.WithFields(logrus.Fields{
		"lobby": join.Lobby,
		"nick":  join.Nickname,
		"user":  uid,
		"epoch": ep,
	})

	handle, onboarding, err := attachToLobby(ctx, reg, join.Lobby, uid, ep, join.Nickname)
	if err != nil {
		return fmt.Errorf("attach to lobby: %w", err)
	}
	defer onboarding.Leave()
	defer func() {
		// Best-effort: the lobby may already be gone.
		dctx, dcancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer dcancel()
		_ = handle.Send(dctx, lobby.Disconnect{User: uid, Epoch: ep})
	}()

	for _, msg := range onboarding.Msgs {
		if err := writeGame(c, msg); err != nil {
			return fmt.Errorf("onboarding write: %w", err)
		}
	}
	log.Info("session joined")

	// Inbound frames are pumped through a channel so the main loop can
	// select across socket and bus.
	frames := make(chan models.ClientReq)
	go readFrames(ctx, c, frames, log)

	for {
		select {
		case env, ok := <-onboarding.Rx.C:
			if !ok {
				log.WithField("missed", onboarding.Rx.Missed()).
					Info("broadcast stream closed, dropping session")
				return nil
			}
			switch env.Rule {
			case models.RuleEveryone:
				if err := writeGame(c, env.Msg); err != nil {
					return err
				}
			case models.RuleExclude:
				if env.User != uid {
					if err := writeGame(c, env.Msg); err != nil {
						return err
					}
				}
			case models.RuleOnly:
				if env.User == uid {
					if err := writeGame(c, env.Msg); err != nil {
						return err
					}
				}
			case models.RuleKill:
				if env.User == uid && env.Epoch == ep {
					log.Info("session killed")
					return nil
				}
			}
		case req, ok := <-frames:
			if !ok {
				// Socket closed or the client sent garbage.
				return nil
			}
			if err := handle.Send(ctx, lobby.Message{User: uid, Epoch: ep, Req: req}); err != nil {
				return fmt.Errorf("lobby gone: %w", err)
			}
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// attachToLobby acquires the actor and performs Connect, healing a stale
// registry entry when the actor died between lookup and send.
func attachToLobby(
	ctx context.Context,
	reg *lobby.Registry,
	name models.LobbyName,
	uid models.UserID,
	ep epoch.Epoch[epoch.Session],
	nick models.Nickname,
) (*lobby.Handle, lobby.Onboarding, error) {
	for attempt := 0; attempt < 3; attempt++ {
		h := reg.GetOrCreate(name)
		reply := make(chan lobby.Onboarding, 1)
		err := h.Send(ctx, lobby.Connect{User: uid, Epoch: ep, Nick: nick, Reply: reply})
		if err != nil {
			if errors.Is(err, lobby.ErrLobbyClosed) {
				reg.RemoveIfMatches(name, h)
				continue
			}
			return nil, lobby.Onboarding{}, err
		}
		select {
		case ob := <-reply:
			return h, ob, nil
		case <-h.Done():
			reg.RemoveIfMatches(name, h)
		case <-ctx.Done():
			return nil, lobby.Onboarding{}, ctx.Err()
		}
	}
	return nil, lobby.Onboarding{}, errors.New("lobby unavailable")
}

func readJoin(ctx context.Context, c *websocket.Conn) (models.ClientReq, error) {
	_, data, err := c.Read(ctx)
	if err != nil {
		return models.ClientReq{}, err
	}
	req, err := models.DecodeClientReq(data)
	if err != nil {
		return models.ClientReq{}, err
	}
	if req.Type != models.ReqJoin {
		return models.ClientReq{}, fmt.Errorf("first frame is %q, not join", req.Type)
	}
	return req, nil
}

// readFrames reads and decodes client frames until the socket closes or a
// frame fails to decode, then closes the channel.
func readFrames(ctx context.Context, c *websocket.Conn, frames chan<- models.ClientReq, log *logrus.Entry) {
	defer close(frames)
	for {
		_, data, err := c.Read(ctx)
		if err != nil {
			status := websocket.CloseStatus(err)
			if status != websocket.StatusNormalClosure && status != websocket.StatusGoingAway && ctx.Err() == nil {
				log.Warnf("socket read: %v", err)
			}
			return
		}
		req, err := models.DecodeClientReq(data)
		if err != nil {
			log.Warnf("bad frame: %v", err)
			return
		}
		select {
		case frames <- req:
		case <-ctx.Done():
			return
		}
	}
}

// writeGame serializes one outbound message onto the socket with a write
// timeout so a wedged client cannot stall the session loop forever.
func writeGame(c *websocket.Conn, msg models.Game) error {
	data, err := models.EncodeGame(msg)
	if err != nil {
		return fmt.Errorf("encode: %w", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
	defer cancel()
	return c.Write(ctx, websocket.MessageText, data)
}
