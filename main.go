package main

import (
	"log"
	"os"
	"os/exec"
)

// Runs the chronology service from cmd/server, passing flags through
func main() {
	args := append([]string{"run", "./cmd/server"}, os.Args[1:]...)
	cmd := exec.Command("go", args...)
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr

	if err := cmd.Run(); err != nil {
		log.Fatalf("Failed to run chronology server: %v", err)
	}
}
