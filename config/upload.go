package config

import "os"

// UploadDir is where uploaded blobs are stored. The public URL is always
// /uploads/... regardless of where the directory actually lives.
func UploadDir() string {
	if dir := os.Getenv("UPLOAD_DIR"); dir != "" {
		return dir
	}
	return "uploads"
}
