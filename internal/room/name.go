package room

import (
	"fmt"
	"math/rand"
	"regexp"
)

// namePattern is the only shape a room name may take. It is checked
// before any filesystem access, so traversal characters never reach a
// path join.
var namePattern = regexp.MustCompile(`^[A-Za-z0-9-]{3,50}$`)

// ValidName reports whether a room name is acceptable.
func ValidName(name string) bool {
	return namePattern.MatchString(name)
}

var nameAdjectives = []string{
	"amber", "blue", "bold", "bright", "calm", "coral", "crimson", "dusty",
	"eager", "fancy", "gentle", "golden", "green", "happy", "icy", "jade",
	"keen", "lively", "lucky", "mellow", "misty", "noble", "olive", "pale",
	"quick", "quiet", "rapid", "royal", "silent", "silver", "sunny", "swift",
	"teal", "vivid", "warm", "wild",
}

var nameNouns = []string{
	"badger", "bear", "crane", "deer", "dove", "eagle", "falcon", "fox",
	"hare", "hawk", "heron", "lark", "lynx", "marten", "otter", "owl",
	"panda", "pike", "raven", "robin", "seal", "sparrow", "stork", "swan",
	"tiger", "trout", "whale", "wolf", "wren",
}

// GenerateName produces a random adjective-noun-number candidate such as
// blue-fox-12. Uniqueness is the caller's problem; retry on collision.
func GenerateName() string {
	adj := nameAdjectives[rand.Intn(len(nameAdjectives))]
	noun := nameNouns[rand.Intn(len(nameNouns))]
	return fmt.Sprintf("%s-%s-%02d", adj, noun, rand.Intn(100))
}
