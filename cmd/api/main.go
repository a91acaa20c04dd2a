package main

import (
	"beehive/internal/server"
)

func main() {
	server.ConfigLoad()
	server.ApiInit()
}
