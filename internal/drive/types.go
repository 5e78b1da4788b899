package drive

// FolderMimeType is the Drive mime type marking an item as a folder.
const FolderMimeType = "application/vnd.google-apps.folder"

// File represents a Drive file or folder, normalized from the API response.
type File struct {
	ID       string
	Name     string
	MimeType string
	Size     int64
	ParentID string
}

// IsFolder reports whether the file is a Drive folder.
func (f *File) IsFolder() bool {
	return f.MimeType == FolderMimeType
}

// fileResponse mirrors the Drive API files resource JSON. The size field is
// serialized as a decimal string by the API.
type fileResponse struct {
	ID       string   `json:"id"`
	Name     string   `json:"name"`
	MimeType string   `json:"mimeType"`
	Size     int64    `json:"size,string,omitempty"`
	Parents  []string `json:"parents"`
}

// toFile normalizes an API files resource into our File type.
func (r *fileResponse) toFile() File {
	f := File{
		ID:       r.ID,
		Name:     r.Name,
		MimeType: r.MimeType,
		Size:     r.Size,
	}

	if len(r.Parents) > 0 {
		f.ParentID = r.Parents[0]
	}

	return f
}

// FileMeta is the metadata sent when creating a file, folder, or upload
// session. Parents is omitted entirely for root-level destinations.
type FileMeta struct {
	Name        string   `json:"name"`
	MimeType    string   `json:"mimeType"`
	Description string   `json:"description,omitempty"`
	Parents     []string `json:"parents,omitempty"`
}

// UploadSession is a handle to an in-progress resumable upload. The session
// URI is pre-authorized by the service — chunk requests against it do not
// carry an Authorization header, which also means a session cannot survive
// a credential rotation.
type UploadSession struct {
	URI string
}
