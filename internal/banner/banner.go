// Package banner prints the startup banner shown when the PBX binary boots.
package banner

import (
	"fmt"
	"io"
	"strings"
)

const logo = `
======================================================================
 ____  ______  __
|  _ \| __ )\ \/ /
| |_) |  _ \ \  /
|  __/| |_) |/  \
|_|   |____//_/\_\
----------------------------------------------------------------------`

const footer = `======================================================================`

// ConfigLine is a single label/value row shown under the banner.
type ConfigLine struct {
	Label string
	Value string
}

// Fprint writes the banner, service name, and aligned config rows to w.
func Fprint(w io.Writer, serviceName string, config []ConfigLine) {
	fmt.Fprintln(w, logo)
	fmt.Fprintln(w, serviceName)

	maxLen := 0
	for _, c := range config {
		if len(c.Label) > maxLen {
			maxLen = len(c.Label)
		}
	}
	for _, c := range config {
		padding := strings.Repeat(" ", maxLen-len(c.Label))
		fmt.Fprintf(w, "  %s%s : %s\n", c.Label, padding, c.Value)
	}

	fmt.Fprintln(w)
	fmt.Fprintln(w, "Listening.")
	fmt.Fprintln(w, footer)
	fmt.Fprintln(w)
}
