package response

import (
	"fmt"
	"html"
	"os"
	"sort"
	"strings"
)

// Autoindex generates an nginx-style directory listing for fsDir, served
// under requestPath, per SPEC_FULL.md's autoindex-HTML-shape supplemented
// feature.
func Autoindex(fsDir, requestPath string) (*Response, error) {
	entries, err := os.ReadDir(fsDir)
	if err != nil {
		return nil, err
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name() < entries[j].Name() })

	var sb strings.Builder
	fmt.Fprintf(&sb, "<html>\n<head><title>Index of %s</title></head>\n<body>\n", html.EscapeString(requestPath))
	fmt.Fprintf(&sb, "<h1>Index of %s</h1><hr><pre>\n", html.EscapeString(requestPath))
	if requestPath != "/" {
		sb.WriteString(`<a href="../">../</a>` + "\n")
	}
	for _, e := range entries {
		info, err := e.Info()
		if err != nil {
			continue
		}
		name := e.Name()
		href := name
		display := name
		if e.IsDir() {
			href += "/"
			display += "/"
		}
		fmt.Fprintf(&sb, "<a href=\"%s\">%-50s</a> %s %12d\n",
			html.EscapeString(href), html.EscapeString(display),
			info.ModTime().Format("02-Jan-2006 15:04"), info.Size())
	}
	sb.WriteString("</pre><hr></body>\n</html>\n")

	r := New(200)
	r.SetHeader("Content-Type", "text/html; charset=utf-8")
	r.SetBodyBytes([]byte(sb.String()))
	return r, nil
}
