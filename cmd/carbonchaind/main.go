// This program is the carbonchain node's operator CLI: it generates a
// genesis file, runs a node against it, or runs a node with mining
// enabled — the three operations standing up a node from nothing
// requires.
package main

import "github.com/carbonchain/node/cmd/carbonchaind/cmd"

func main() {
	cmd.Execute()
}
