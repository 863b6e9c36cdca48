package main

import "github.com/example/hostbuddy-notifier/cmd"

func main() {
	cmd.Execute()
}
