package session

import (
	"hash/fnv"

	"github.com/lucasb-eyer/go-colorful"
)

// ColorFor maps a user id onto a fixed palette ring. The same id always
// lands on the same hue, so a user keeps their cursor color across
// reconnects and across rooms. Saturation and lightness are pinned to
// keep every color readable on the canvas.
func ColorFor(userID string) string {
	h := fnv.New32a()
	h.Write([]byte(userID))
	hue := float64(h.Sum32() % 360)
	return colorful.Hsl(hue, 0.85, 0.55).Hex()
}
