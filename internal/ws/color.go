package ws

import "hash/fnv"

// The cursor palette. Small on purpose; collisions between different
// connections are fine.
var userColors = []string{
	"#ff0000",
	"#00ff00",
	"#0000ff",
	"#ffff00",
	"#ff00ff",
	"#00ffff",
}

// UserColor maps a connection ID to a palette color. The mapping is
// deterministic, so a connection keeps the same cursor color for its
// whole lifetime and clients cannot spoof someone else's color.
func UserColor(connectionID string) string {
	h := fnv.New32a()
	h.Write([]byte(connectionID))
	return userColors[h.Sum32()%uint32(len(userColors))]
}
