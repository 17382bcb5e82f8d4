package backend

import (
	"fmt"
	"io"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/brutella/hc/log"
)

// ETag derives the validator of a published frame from its size and
// modification time.
func ETag(fi os.FileInfo) string {
	return etag(fi.Size(), fi.ModTime())
}

func etag(size int64, mtime time.Time) string {
	return fmt.Sprintf(`"%x-%x"`, size, mtime.UnixNano())
}

// LastModified formats the modification time of a published frame as an
// HTTP date.
func LastModified(fi os.FileInfo) string {
	return fi.ModTime().UTC().Format(http.TimeFormat)
}

// serveFrame serves the published frame at path. Validators are computed
// from the opened file, so they always describe the bytes being sent even
// if the frame is replaced concurrently.
func serveFrame(w http.ResponseWriter, r *http.Request, path string, conditional bool) {
	f, err := os.Open(path)
	if os.IsNotExist(err) {
		http.Error(w, "No image", http.StatusNotFound)
		return
	}
	if err != nil {
		log.Info.Println("WebService:", err)
		http.Error(w, "Cannot read image", http.StatusInternalServerError)
		return
	}
	defer f.Close()

	fi, err := f.Stat()
	if err != nil {
		log.Info.Println("WebService:", err)
		http.Error(w, "Cannot read image", http.StatusInternalServerError)
		return
	}

	h := w.Header()
	if conditional {
		etag := ETag(fi)
		h.Set("ETag", etag)
		h.Set("Last-Modified", LastModified(fi))

		if r.Header.Get("If-None-Match") == etag {
			w.WriteHeader(http.StatusNotModified)
			return
		}
		h.Set("Cache-Control", "no-cache, must-revalidate")
	} else {
		h.Set("Cache-Control", "no-store")
	}

	h.Set("Content-Type", "image/jpeg")
	h.Set("Content-Length", strconv.FormatInt(fi.Size(), 10))
	w.WriteHeader(http.StatusOK)

	if r.Method == http.MethodHead {
		return
	}
	if _, err := io.Copy(w, f); err != nil {
		log.Debug.Println("WebService:", err)
	}
}

func (b *Backend) getLast(w http.ResponseWriter, r *http.Request) {
	log.Debug.Println("WebService: getLast requested")
	serveFrame(w, r, b.lastFile, true)
}

func (b *Backend) getDisplay(w http.ResponseWriter, r *http.Request) {
	log.Debug.Println("WebService: getDisplay requested")
	serveFrame(w, r, b.displayFile, false)
}
