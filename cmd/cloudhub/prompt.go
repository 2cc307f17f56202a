package main

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"
)

var stdin = bufio.NewReader(os.Stdin)

// promptValue returns value when set, otherwise asks for it on stdin
func promptValue(value, label string) (string, error) {
	if value != "" {
		return value, nil
	}
	fmt.Printf("%s: ", label)
	line, err := stdin.ReadString('\n')
	if err != nil && err != io.EOF {
		return "", err
	}
	return strings.TrimSpace(line), nil
}

// passwordValue reads the password from the flag, then CLOUDHUB_PASSWORD, then stdin
func passwordValue(flagValue string) (string, error) {
	if flagValue != "" {
		return flagValue, nil
	}
	if env := os.Getenv("CLOUDHUB_PASSWORD"); env != "" {
		return env, nil
	}
	return promptValue("", "Password")
}
