package main

import (
	"github.com/lsp-research/lspmarket/cmd/lspsim/cmd"
)

func main() {
	cmd.Execute()
}
