// Command chatcli is a terminal client for iChat: manage connections, start
// conversations and watch one conversation by polling.
package main

func main() {
	Execute()
}
