package main

import (
	"bufio"
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"
	"github.com/unrepo/devportal/internal/dashboard"
)

// printNotifier writes notifications as single lines
type printNotifier struct {
	out io.Writer
}

func (p printNotifier) Notify(n dashboard.Notification) {
	mark := color.GreenString("✓")
	if n.Level == dashboard.LevelError {
		mark = color.New(color.FgRed, color.Bold).Sprint("✗")
	}
	if n.Description != "" {
		fmt.Fprintf(p.out, "%s %s\n  %s\n", mark, n.Title, color.HiBlackString(n.Description))
		return
	}
	fmt.Fprintf(p.out, "%s %s\n", mark, n.Title)
}

// promptConfirmer asks on the terminal; anything but y or yes declines
type promptConfirmer struct {
	in  io.Reader
	out io.Writer
}

func (p promptConfirmer) Confirm(_ context.Context, prompt string) bool {
	fmt.Fprintf(p.out, "%s [y/N] ", prompt)
	line, err := bufio.NewReader(p.in).ReadString('\n')
	if err != nil && line == "" {
		return false
	}
	switch strings.ToLower(strings.TrimSpace(line)) {
	case "y", "yes":
		return true
	}
	return false
}

// osc52Clipboard sets the terminal clipboard with an OSC 52 escape sequence
type osc52Clipboard struct {
	out io.Writer
}

func (c osc52Clipboard) WriteText(_ context.Context, text string) error {
	_, err := fmt.Fprintf(c.out, "\x1b]52;c;%s\a", base64.StdEncoding.EncodeToString([]byte(text)))
	return err
}
