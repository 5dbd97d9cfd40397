package ws

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"chatspark/internal/domain"
	"chatspark/internal/security"
	"chatspark/internal/service"
)

type wsAuthError struct {
	status int
	msg    string
}

func (e wsAuthError) Error() string {
	return e.msg
}

func normalizeAllowedOrigins(origins []string) map[string]struct{} {
	res := make(map[string]struct{}, len(origins))
	for _, origin := range origins {
		o := strings.TrimSpace(strings.ToLower(origin))
		if o != "" {
			res[o] = struct{}{}
		}
	}
	return res
}

func makeCheckOrigin(allowedOrigins []string) func(r *http.Request) bool {
	allowed := normalizeAllowedOrigins(allowedOrigins)
	if len(allowed) == 0 {
		return func(r *http.Request) bool {
			return false
		}
	}

	return func(r *http.Request) bool {
		origin := strings.TrimSpace(strings.ToLower(r.Header.Get("Origin")))
		if origin == "" {
			return false
		}
		if _, ok := allowed[origin]; ok {
			return true
		}

		u, err := url.Parse(origin)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return false
		}
		normalized := strings.ToLower(fmt.Sprintf("%s://%s", u.Scheme, u.Host))
		_, ok := allowed[normalized]
		return ok
	}
}

func extractTokenFromWSRequest(r *http.Request) (string, error) {
	authHeader := strings.TrimSpace(r.Header.Get("Authorization"))
	if strings.HasPrefix(strings.ToLower(authHeader), "bearer ") {
		token := strings.TrimSpace(authHeader[len("Bearer "):])
		if token != "" {
			return token, nil
		}
	}

	protocolHeader := r.Header.Get("Sec-WebSocket-Protocol")
	if protocolHeader != "" {
		parts := strings.Split(protocolHeader, ",")
		for i := range parts {
			parts[i] = strings.TrimSpace(parts[i])
		}
		if len(parts) >= 2 && strings.EqualFold(parts[0], "bearer") {
			token := parts[1]
			if token != "" {
				return token, nil
			}
		}
	}

	return "", wsAuthError{status: http.StatusUnauthorized, msg: "missing bearer token"}
}

// MakeHandler returns an HTTP handler for the /ws endpoint.
// Authenticates via Bearer token (Authorization header or Sec-WebSocket-Protocol), then dispatches events:
//   - join_room     -> subscribe the connection to a conversation channel
//   - send_message  -> create message, confirm to sender, deliver to recipient
//   - typing_start  -> forward ephemeral typing indicator
//   - typing_stop   -> forward ephemeral stopped-typing indicator
func MakeHandler(
	hub *Hub,
	tokens *security.TokenService,
	users domain.UserRepository,
	msgSvc *service.MessageService,
	allowedOrigins []string,
	log zerolog.Logger,
) http.HandlerFunc {
	log = log.With().Str("component", "ws-handler").Logger()
	checkOrigin := makeCheckOrigin(allowedOrigins)
	upgrader := websocket.Upgrader{
		CheckOrigin: checkOrigin,
		Subprotocols: []string{
			"bearer",
		},
	}

	return func(w http.ResponseWriter, r *http.Request) {
		if !checkOrigin(r) {
			http.Error(w, "origin not allowed", http.StatusForbidden)
			return
		}

		tokenStr, err := extractTokenFromWSRequest(r)
		if err != nil {
			if authErr, ok := err.(wsAuthError); ok {
				http.Error(w, authErr.msg, authErr.status)
				return
			}
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		claims, err := tokens.Parse(tokenStr)
		if err != nil {
			http.Error(w, "invalid token", http.StatusUnauthorized)
			return
		}
		userID, err := security.UserID(claims)
		if err != nil {
			http.Error(w, "invalid token subject", http.StatusUnauthorized)
			return
		}

		ctx := r.Context()
		user, err := users.GetByID(ctx, userID)
		if err != nil || !user.IsActive {
			http.Error(w, "user not found or inactive", http.StatusUnauthorized)
			return
		}

		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		hub.Register(ctx, user.ID, conn)
		defer hub.Unregister(context.Background(), user.ID, conn)

		for {
			var payload map[string]any
			if err := conn.ReadJSON(&payload); err != nil {
				break
			}
			msgType, _ := payload["type"].(string)
			switch msgType {

			case "join_room":
				convIDf, _ := payload["conversationId"].(float64)
				if convIDf == 0 {
					sendError(conn, "join_room requires conversationId")
					continue
				}
				hub.JoinRoom(int64(convIDf), user.ID)

			case "send_message":
				receiverIDf, _ := payload["receiverId"].(float64)
				content, _ := payload["content"].(string)
				if receiverIDf == 0 || content == "" {
					sendError(conn, "send_message requires receiverId and non-empty content")
					continue
				}
				msg, err := msgSvc.SendMessage(ctx, user.ID, int64(receiverIDf), content, service.OriginSync)
				if err != nil {
					log.Error().Err(err).Int64("user_id", user.ID).Msg("send message")
					sendError(conn, "failed to send message")
					continue
				}
				hub.SendToUser(user.ID, map[string]any{
					"type":           "message_sent",
					"message":        msg,
					"conversationId": msg.ConversationID,
				})
				if msg.ReceiverID != user.ID {
					hub.DeliverMessage(msg)
				}

			case "typing_start", "typing_stop":
				convIDf, _ := payload["conversationId"].(float64)
				receiverIDf, _ := payload["receiverId"].(float64)
				if convIDf == 0 || receiverIDf == 0 {
					continue
				}
				event := "user_typing"
				if msgType == "typing_stop" {
					event = "user_stopped_typing"
				}
				indicator := map[string]any{
					"type":           event,
					"userId":         user.ID,
					"conversationId": int64(convIDf),
				}
				hub.BroadcastToRoom(int64(convIDf), user.ID, indicator)
				hub.SendToUser(int64(receiverIDf), indicator)

			default:
				log.Debug().Str("event", msgType).Int64("user_id", user.ID).Msg("unknown event type")
			}
		}
	}
}

func sendError(conn *websocket.Conn, msg string) {
	_ = conn.WriteJSON(map[string]any{
		"type":    "error",
		"message": msg,
	})
}
