// Package cli implements the Carbon Pulse command-line interface.
package cli

import (
	"fmt"
	"os"
)

const (
	Version = "0.1.0"
	Banner  = `
  ╔═╗╔═╗╦═╗╔╗ ╔═╗╔╗╔  ╔═╗╦ ╦╦  ╔═╗╔═╗
  ║  ╠═╣╠╦╝╠╩╗║ ║║║║  ╠═╝║ ║║  ╚═╗║╣
  ╚═╝╩ ╩╩╚═╚═╝╚═╝╝╚╝  ╩  ╚═╝╩═╝╚═╝╚═╝ 🌍
  Carbon Intensity Monitoring Pipeline
  v%s
`
)

func PrintBanner() {
	fmt.Fprintf(os.Stderr, Banner, Version)
}
