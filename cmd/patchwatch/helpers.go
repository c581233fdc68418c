package main

import (
	"io"
	"os"

	"github.com/mattn/go-isatty"
)

const (
	ansiReset = "\x1b[0m"
	ansiRed   = "\x1b[31m"
	ansiGreen = "\x1b[32m"
)

func shouldColorize(writer io.Writer) bool {
	file, ok := writer.(*os.File)
	if !ok {
		return false
	}
	fd := file.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

func colorizeYesNo(value bool, colorize bool) string {
	text := yesNo(value)
	if !colorize {
		return text
	}
	if value {
		return ansiGreen + text + ansiReset
	}
	return ansiRed + text + ansiReset
}
