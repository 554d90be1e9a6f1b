package signlink

import (
	"fmt"
	"os/exec"
	"runtime"
	"strings"
)

// Clipboard and browser hand-off are best-effort conveniences over a
// held link. They return a user-visible notice instead of an error so
// a missing helper binary never fails the operation that minted the
// link.

var clipboardTools = [][]string{
	{"wl-copy"},
	{"xclip", "-selection", "clipboard"},
	{"xsel", "--clipboard", "--input"},
	{"pbcopy"},
}

// CopyToClipboard places the link on the system clipboard. The
// returned notice is empty on success.
func CopyToClipboard(link string) string {
	link = strings.TrimSpace(link)
	if link == "" {
		return "nothing to copy"
	}
	for _, tool := range clipboardTools {
		path, err := exec.LookPath(tool[0])
		if err != nil {
			continue
		}
		cmd := exec.Command(path, tool[1:]...)
		cmd.Stdin = strings.NewReader(link)
		if err := cmd.Run(); err != nil {
			return fmt.Sprintf("copy failed: %v", err)
		}
		return ""
	}
	return "no clipboard tool available, copy the link manually"
}

// OpenInBrowser hands the link to the platform opener. The returned
// notice is empty on success.
func OpenInBrowser(link string) string {
	link = strings.TrimSpace(link)
	if link == "" {
		return "nothing to open"
	}
	opener := "xdg-open"
	if runtime.GOOS == "darwin" {
		opener = "open"
	}
	path, err := exec.LookPath(opener)
	if err != nil {
		return fmt.Sprintf("no opener available (%s not found)", opener)
	}
	if err := exec.Command(path, link).Start(); err != nil {
		return fmt.Sprintf("open failed: %v", err)
	}
	return ""
}
