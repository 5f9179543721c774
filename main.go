package main

import (
	"github.com/kimjeppesen/Samlino-ai-pressence/cmd"
)

func main() {
	cmd.Execute()
}
