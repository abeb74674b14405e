package websocket

import (
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	ws "github.com/coder/websocket"
)

var knownEntities = map[string]bool{
	EntityTask:      true,
	EntityMember:    true,
	EntityGoal:      true,
	EntityShopItem:  true,
	EntityInventory: true,
	EntityTemplate:  true,
	EntityBackup:    true,
}

// parseEntities reads a comma separated entity list such as "task,goal".
// An empty string means every entity.
func parseEntities(raw string) ([]string, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, nil
	}
	var entities []string
	for _, e := range strings.Split(raw, ",") {
		e = strings.TrimSpace(e)
		if e == "" {
			continue
		}
		if !knownEntities[e] {
			return nil, fmt.Errorf("unknown entity %q", e)
		}
		entities = append(entities, e)
	}
	return entities, nil
}

// HandleWebSocket upgrades GET /ws to a feed client. An optional
// ?subscribe=task,member query sets the initial filter; the client can
// change it later with a subscribe message.
func HandleWebSocket(hub *Hub, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		entities, err := parseEntities(r.URL.Query().Get("subscribe"))
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}

		conn, err := ws.Accept(w, r, &ws.AcceptOptions{
			InsecureSkipVerify: true, // the PWA may be served from another origin
		})
		if err != nil {
			logger.Warn("websocket accept", "error", err)
			return
		}
		defer conn.CloseNow()

		client := NewClient(hub, conn)
		client.Subscribe(entities)
		logger.Debug("websocket connected", "remote", r.RemoteAddr, "entities", entities)
		client.Run(r.Context())
	}
}
