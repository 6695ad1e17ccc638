// Command gosession-server is a demo HTTP server guarded by goSession
// cookie sessions.
package main

import "github.com/MrEthical07/goSession/cmd/gosession-server/cmd"

func main() {
	cmd.Execute()
}
