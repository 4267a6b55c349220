// Command mcpwatch passively observes HTTP/MCP traffic on a pcap file or a
// live interface and prints reconstructed request/response transactions.
package main

import (
	"os"

	"github.com/mcpwatch/mcpwatch/cmd/mcpwatch/internal/cli"
)

func main() {
	os.Exit(cli.Execute())
}
