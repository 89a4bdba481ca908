package feed

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"

	"github.com/gofiber/fiber/v2"

	livefeed "wagerd/feed"
	"wagerd/helpers"
)

// Publisher is wired in main.
var Publisher *livefeed.Publisher

func RecentHandler(c *fiber.Ctx) error {
	return helpers.JSONSuccess(c, "Recent bets", Publisher.Recent())
}

// LiveHandler streams settled bets as server-sent events. The subscription
// drops items when the client reads too slowly; a reconnect catches up via
// the recent snapshot.
func LiveHandler(c *fiber.Ctx) error {
	c.Set(fiber.HeaderContentType, "text/event-stream")
	c.Set(fiber.HeaderCacheControl, "no-cache")
	c.Set(fiber.HeaderConnection, "keep-alive")

	items, cancel := Publisher.Listen(context.Background())
	c.Context().SetBodyStreamWriter(func(w *bufio.Writer) {
		defer cancel()
		for item := range items {
			payload, err := json.Marshal(item)
			if err != nil {
				continue
			}
			if _, err := fmt.Fprintf(w, "data: %s\n\n", payload); err != nil {
				return
			}
			if err := w.Flush(); err != nil {
				return
			}
		}
	})
	return nil
}
