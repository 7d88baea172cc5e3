package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/holyokefd/portal/internal/repository"
	"github.com/holyokefd/portal/internal/storage"
)

// errTooManyFiles rejects forms exceeding the per-item file cap.
var errTooManyFiles = errors.New("too many files")

// queryOrFormUserID reads the acting user's id from the userId form
// field, falling back to the query parameter.
func queryOrFormUserID(c echo.Context) (uint64, error) {
	if v := c.FormValue("userId"); v != "" {
		return strconv.ParseUint(v, 10, 64)
	}
	return queryUserID(c)
}

// saveUploads persists every file under the multipart files[] field
// (bare "files" also accepted) and returns their metadata. On any
// failure the files already written are unlinked again.
func saveUploads(c echo.Context, store *storage.Store) ([]repository.AttachmentInput, error) {
	form, err := c.MultipartForm()
	if err != nil {
		// No multipart body at all means no attachments.
		return nil, nil
	}
	files := form.File["files[]"]
	if len(files) == 0 {
		files = form.File["files"]
	}
	if len(files) > storage.MaxFilesPerItem {
		return nil, errTooManyFiles
	}

	inputs := []repository.AttachmentInput{}
	for _, fh := range files {
		in, err := store.Save(fh)
		if err != nil {
			for _, saved := range inputs {
				_ = store.Remove(saved.FilePath)
			}
			return nil, err
		}
		inputs = append(inputs, in)
	}
	return inputs, nil
}

// uploadError maps storage failures onto HTTP responses.
func uploadError(c echo.Context, err error) error {
	switch {
	case errors.Is(err, storage.ErrTooLarge):
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "file exceeds the 10 MB limit"})
	case errors.Is(err, errTooManyFiles):
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "too many files"})
	default:
		return fail(c, err, "save-uploads", 0)
	}
}
