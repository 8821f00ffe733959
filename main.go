package main

import "widget-sync-backend/cmd"

func main() {
	cmd.Run()
}
