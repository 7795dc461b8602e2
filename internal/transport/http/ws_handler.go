package http

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net"
	stdhttp "net/http"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/cardroom-server/internal/config"
	"github.com/vovakirdan/cardroom-server/internal/core"
	"github.com/vovakirdan/cardroom-server/internal/proto"
)

var (
	// errSessionClosed ends a connection whose session was torn down by the server.
	errSessionClosed = errors.New("session closed")
	// errTooManyFrames ends a connection that exceeded its frame budget.
	errTooManyFrames = errors.New("too many frames")
)

// WSHandler upgrades HTTP connections and bridges them to core sessions.
type WSHandler struct {
	srv             *core.Server
	maxMessageBytes int64
	framesPerMinute int
	log             *zerolog.Logger
}

// NewWSHandler builds a new WebSocket handler.
func NewWSHandler(srv *core.Server, cfg *config.Config, logger *zerolog.Logger) stdhttp.Handler {
	l := logger.With().Str("component", "ws").Logger()
	return &WSHandler{
		srv:             srv,
		maxMessageBytes: cfg.MaxMessageBytes,
		framesPerMinute: cfg.MaxFramesPerMinute,
		log:             &l,
	}
}

func (h *WSHandler) ServeHTTP(w stdhttp.ResponseWriter, r *stdhttp.Request) {
	ctx := r.Context()

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		InsecureSkipVerify: true,
	})
	if err != nil {
		h.log.Error().Err(err).Msg("ws accept error")
		return
	}
	defer conn.Close(websocket.StatusInternalError, "internal error")
	if h.maxMessageBytes > 0 {
		conn.SetReadLimit(h.maxMessageBytes)
	}

	sess := h.srv.NewSession(remoteHost(r.RemoteAddr))
	defer sess.Teardown()

	limiter := newFrameLimiter(h.framesPerMinute)
	limiter.startReset(sess.Done())

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	errCh := make(chan error, 2)
	go func() {
		errCh <- h.readLoop(ctx, conn, sess, limiter)
	}()
	go func() {
		errCh <- h.writeLoop(ctx, conn, sess)
	}()

	err = <-errCh
	status, reason := closeStatus(err)
	if status != websocket.StatusNormalClosure && status != websocket.StatusPolicyViolation {
		h.log.Warn().Err(err).Str("session_id", sess.ID()).Msg("ws connection closed with error")
	}
	// Close before cancelling so the peer sees our status, not a read timeout.
	conn.Close(status, reason)
	cancel()
	<-errCh
}

func (h *WSHandler) readLoop(ctx context.Context, conn *websocket.Conn, sess *core.Session, limiter *frameLimiter) error {
	for {
		_, data, err := conn.Read(ctx)
		if err != nil {
			return err
		}
		if !limiter.allow() {
			return errTooManyFrames
		}

		var container proto.CommandContainer
		if err := json.Unmarshal(data, &container); err != nil {
			h.log.Debug().Err(err).Str("session_id", sess.ID()).Msg("malformed frame")
			if err := writeProtoError(ctx, conn, proto.ErrCodeBadJSON, "malformed json"); err != nil {
				return err
			}
			continue
		}

		batch, err := proto.DecodeBatch(&container)
		if err != nil {
			h.log.Debug().Err(err).Str("session_id", sess.ID()).Msg("undecodable batch")
			if err := writeProtoError(ctx, conn, proto.ErrCodeBadCommand, err.Error()); err != nil {
				return err
			}
			continue
		}

		sess.ProcessCommandBatch(ctx, batch)
	}
}

func (h *WSHandler) writeLoop(ctx context.Context, conn *websocket.Conn, sess *core.Session) error {
	for {
		select {
		case msg := <-sess.Outbound():
			if err := wsjson.Write(ctx, conn, proto.FromCore(msg)); err != nil {
				h.log.Error().Err(err).Str("session_id", sess.ID()).Msg("write ws message")
				return err
			}
		case <-sess.Done():
			// Deliver what was queued before the teardown, e.g. the close reason.
			for {
				select {
				case msg := <-sess.Outbound():
					if err := wsjson.Write(ctx, conn, proto.FromCore(msg)); err != nil {
						return err
					}
				default:
					return errSessionClosed
				}
			}
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// closeStatus maps the error that ended a connection to its close frame.
func closeStatus(err error) (websocket.StatusCode, string) {
	switch {
	case err == nil, errors.Is(err, context.Canceled), errors.Is(err, io.EOF):
		return websocket.StatusNormalClosure, "closing"
	case errors.Is(err, errSessionClosed):
		return websocket.StatusNormalClosure, errSessionClosed.Error()
	case errors.Is(err, errTooManyFrames):
		return websocket.StatusPolicyViolation, errTooManyFrames.Error()
	}
	switch s := websocket.CloseStatus(err); s {
	case websocket.StatusNormalClosure, websocket.StatusGoingAway:
		return websocket.StatusNormalClosure, "closing"
	case -1:
		return websocket.StatusInternalError, err.Error()
	default:
		return s, err.Error()
	}
}

func writeProtoError(ctx context.Context, conn *websocket.Conn, code, msg string) error {
	return wsjson.Write(ctx, conn, proto.Outbound{
		Type:  proto.OutboundTypeError,
		Error: &proto.Error{Code: code, Msg: msg},
	})
}

func remoteHost(addr string) string {
	host, _, err := net.SplitHostPort(addr)
	if err != nil {
		return addr
	}
	return host
}
