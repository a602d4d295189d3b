package main

import "github.com/meetscribe/meetscribe/cmd"

func main() {
	cmd.Execute()
}
