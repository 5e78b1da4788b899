package drive

import "fmt"

// Public link bases for uploaded objects.
const (
	folderLinkBase = "https://drive.google.com/drive/folders/%s"
	fileLinkBase   = "https://drive.google.com/uc?id=%s&export=download"
)

// FolderLink returns the shareable link for a folder ID.
func FolderLink(folderID string) string {
	return fmt.Sprintf(folderLinkBase, folderID)
}

// FileLink returns the shareable download link for a file ID.
func FileLink(fileID string) string {
	return fmt.Sprintf(fileLinkBase, fileID)
}
