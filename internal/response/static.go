package response

import (
	"os"

	"github.com/goceleris/webserv/internal/mime"
)

// StaticFile opens path and arms a streamed 200 response around it, with
// Content-Length taken from stat rather than buffering the file, per
// spec.md §4.6.
func StaticFile(path string) (*Response, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, err
	}
	r := New(200)
	r.SetHeader("Content-Type", mime.Lookup(path))
	r.SetBodyFile(f, info.Size())
	return r, nil
}
