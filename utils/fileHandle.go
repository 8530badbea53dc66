package utils

import (
	"mime/multipart"

	"certportal/services/certificate"
)

// OpenUploads opens every uploaded file for streaming into the attachment
// store. The returned func closes them all and is safe to call on error.
func OpenUploads(files []*multipart.FileHeader) ([]certificate.Upload, func(), error) {
	uploads := make([]certificate.Upload, 0, len(files))
	opened := make([]multipart.File, 0, len(files))
	closeAll := func() {
		for _, f := range opened {
			f.Close()
		}
	}

	for _, fh := range files {
		src, err := fh.Open()
		if err != nil {
			closeAll()
			return nil, func() {}, err
		}
		opened = append(opened, src)
		uploads = append(uploads, certificate.Upload{Filename: fh.Filename, Content: src})
	}
	return uploads, closeAll, nil
}

// GetFileURL is the public path of a stored attachment.
func GetFileURL(name string) string {
	if name == "" {
		return ""
	}
	return "/uploads/certificates/" + name
}
