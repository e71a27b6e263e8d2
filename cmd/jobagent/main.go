package main

import "os"

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(report(os.Stderr, err))
	}
}
