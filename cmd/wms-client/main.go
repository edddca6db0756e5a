package main

import "wmshub/cmd/wms-client/command"

func main() {
	command.Execute()
}
