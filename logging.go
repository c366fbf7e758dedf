package main

import (
	"log"
	"strings"
)

var debugEnabled bool

// setLogLevel enables debugf output for level "debug". Every other level
// logs through log.Printf as usual.
func setLogLevel(level string) {
	debugEnabled = strings.EqualFold(strings.TrimSpace(level), "debug")
}

func debugf(format string, args ...any) {
	if !debugEnabled {
		return
	}
	log.Printf("DEBUG "+format, args...)
}
