package main

import (
	"fmt"
	"os"

	"github.com/keshon/lavaplay/internal/command"
	"github.com/keshon/lavaplay/internal/command/music"
	"github.com/keshon/lavaplay/internal/docs"
	"github.com/keshon/lavaplay/pkg/cmd"
)

func main() {
	registry := cmd.NewRegistry()
	if err := command.RegisterCommand(registry, &music.MusicCommand{}); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	if err := docs.UpdateReadme(registry, "README.md.tmpl", "README.md"); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	fmt.Println("README.md updated with current commands")
}
