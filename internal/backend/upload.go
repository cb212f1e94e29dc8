package backend

import (
	"bytes"
	"context"
	"io"
	"mime/multipart"
	"net/http"

	"github.com/pkg/errors"
)

// BulkUpload forwards a spreadsheet to the resource's bulk_upload action as
// multipart field "file".
func (c *Client) BulkUpload(ctx context.Context, r Resource, filename string, file io.Reader) (UploadResult, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	part, err := w.CreateFormFile("file", filename)
	if err != nil {
		return UploadResult{}, errors.Wrap(err, "create form file")
	}
	if _, err := io.Copy(part, file); err != nil {
		return UploadResult{}, errors.Wrap(err, "copy upload")
	}
	if err := w.Close(); err != nil {
		return UploadResult{}, errors.Wrap(err, "close multipart writer")
	}

	resp, err := c.send(ctx, request{
		method:      http.MethodPost,
		resource:    r.Name,
		path:        r.action("bulk_upload"),
		body:        &buf,
		contentType: w.FormDataContentType(),
	})
	if err != nil {
		return UploadResult{}, err
	}
	defer resp.Body.Close()

	var out UploadResult
	if err := decode(resp, &out); err != nil {
		return UploadResult{}, err
	}
	return out, nil
}
