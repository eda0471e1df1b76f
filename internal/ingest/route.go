package ingest

import (
	"strings"

	"github.com/google/uuid"

	"github.com/shineum/mailthread/internal/email"
)

// threadNamespace seeds the card IDs derived from thread roots.
var threadNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("urn:mailthread:thread"))

// RouteFor picks the board and card for e. The first recipient of the form
// board+card@host names both. Otherwise the board is defaultBoard, or the
// local part of the first recipient when no default is set. Without a card
// tag the card ID is derived from the thread root, so every reply in a
// thread lands on the same card.
func RouteFor(recipients []string, e *email.Email, defaultBoard string) (Route, error) {
	if len(recipients) == 0 {
		recipients = e.Recipients()
	}
	if len(recipients) == 0 {
		return Route{}, ErrNoRecipients
	}

	route := Route{BoardID: defaultBoard}
	for _, rcpt := range recipients {
		board, card, ok := splitPlusAddress(rcpt)
		if !ok {
			continue
		}
		if card != "" {
			return Route{BoardID: board, CardID: card}, nil
		}
		if route.BoardID == "" {
			route.BoardID = board
		}
	}

	if root := e.ThreadRoot(); root != "" {
		route.CardID = uuid.NewSHA1(threadNamespace, []byte(root)).String()
	} else {
		route.CardID = uuid.NewString()
	}
	return route, nil
}

// splitPlusAddress splits the local part of "board+card@host".
func splitPlusAddress(addr string) (board, card string, ok bool) {
	addr = strings.Trim(strings.TrimSpace(addr), "<>")
	at := strings.LastIndexByte(addr, '@')
	if at <= 0 {
		return "", "", false
	}
	local := strings.ToLower(addr[:at])
	board, card, _ = strings.Cut(local, "+")
	return board, card, board != ""
}
