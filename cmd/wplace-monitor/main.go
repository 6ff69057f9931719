// Command wplace-monitor runs the tile-polling scheduler and diff engine
// described in the package documentation under internal/.
package main

import "github.com/wplace-monitor/wplace-monitor/internal/cmd"

func main() {
	cmd.Execute()
}
