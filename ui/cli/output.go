// Copyright (c) 2026 ToeiRei
// Serverbase - SSH server registry and remote execution
// This source code is licensed under the MIT license found in the LICENSE file.

package cli

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"
	"github.com/toeirei/serverbase/internal/fault"
	"github.com/toeirei/serverbase/internal/i18n"
	"github.com/toeirei/serverbase/internal/security"
	"golang.org/x/term"
)

var (
	headingStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	labelStyle   = lipgloss.NewStyle().Faint(true)
	errorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
)

func heading(w io.Writer, text string) {
	fmt.Fprintln(w, headingStyle.Render(text))
}

// printTable writes rows under header, aligned with a tabwriter.
func printTable(w io.Writer, header []string, rows [][]string) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, strings.Join(header, "\t"))
	for _, r := range rows {
		fmt.Fprintln(tw, strings.Join(r, "\t"))
	}
	_ = tw.Flush()
}

// printFields writes label/value pairs, skipping empty values.
func printFields(w io.Writer, pairs ...string) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	for i := 0; i+1 < len(pairs); i += 2 {
		if pairs[i+1] == "" {
			continue
		}
		fmt.Fprintf(tw, "%s\t%s\n", labelStyle.Render(pairs[i]+":"), pairs[i+1])
	}
	_ = tw.Flush()
}

// reportError prints every validation problem on its own line and returns
// err unchanged so cobra sets the exit status.
func reportError(cmd *cobra.Command, err error) error {
	var v *fault.ValidationError
	if errors.As(err, &v) {
		w := cmd.ErrOrStderr()
		fmt.Fprintln(w, errorStyle.Render(i18n.T("validation.failed")))
		for _, p := range v.Problems {
			fmt.Fprintf(w, "  - %s\n", p.String())
		}
	}
	return err
}

// readSecret prompts on stderr and reads a line without echo when stdin is
// a terminal. Piped input is read as a plain line.
func readSecret(cmd *cobra.Command, prompt string) (security.Secret, error) {
	fmt.Fprint(cmd.ErrOrStderr(), prompt)
	if f, ok := cmd.InOrStdin().(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		b, err := term.ReadPassword(int(f.Fd()))
		fmt.Fprintln(cmd.ErrOrStderr())
		if err != nil {
			return nil, err
		}
		return security.Secret(b), nil
	}
	line, err := readLine(cmd)
	if err != nil {
		return nil, err
	}
	return security.FromString(line), nil
}

// stdinReader is shared between prompts so buffered input is not lost.
var stdinReader = map[io.Reader]*bufio.Reader{}

func readLine(cmd *cobra.Command) (string, error) {
	in := cmd.InOrStdin()
	r, ok := stdinReader[in]
	if !ok {
		r = bufio.NewReader(in)
		stdinReader[in] = r
	}
	line, err := r.ReadString('\n')
	if err != nil && !(errors.Is(err, io.EOF) && line != "") {
		return "", err
	}
	return strings.TrimRight(line, "\r\n"), nil
}

// confirm asks a yes/no question; only "y" and "yes" count as yes.
func confirm(cmd *cobra.Command, prompt string) bool {
	fmt.Fprint(cmd.ErrOrStderr(), prompt+" [y/N] ")
	answer, err := readLine(cmd)
	if err != nil {
		return false
	}
	switch strings.ToLower(strings.TrimSpace(answer)) {
	case "y", "yes", "j", "ja":
		return true
	}
	return false
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
