package main

import (
	"github.com/dwarvesf/faucet-swap-backend/internal/server"
)

func main() {
	server.Init()
}
