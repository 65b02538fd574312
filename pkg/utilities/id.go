package utilities

import (
	"os"
	"strconv"
	"sync"

	"github.com/bwmarrin/snowflake"
	"github.com/segmentio/ksuid"
)

var (
	nodeOnce sync.Once
	node     *snowflake.Node
)

// NewKSUID generates a new globally unique KSUID string.
func NewKSUID() string {
	return ksuid.New().String()
}

// NewSnowflakeID generates a snowflake ID string using a node ID from
// the environment variable SNOWFLAKE_NODE (default 1). The node is created
// once per process so the sequence counter is shared between callers.
// If node setup fails it falls back to a KSUID string.
func NewSnowflakeID() string {
	nodeOnce.Do(func() {
		node = newNode(os.Getenv("SNOWFLAKE_NODE"))
	})
	if node == nil {
		return NewKSUID()
	}
	return node.Generate().String()
}

// newNode returns nil when raw names a node id snowflake cannot use.
func newNode(raw string) *snowflake.Node {
	nodeID := int64(1)
	if raw != "" {
		parsed, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return nil
		}
		nodeID = parsed
	}
	n, err := snowflake.NewNode(nodeID)
	if err != nil {
		return nil
	}
	return n
}
