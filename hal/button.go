// Copyright (c) 2025 Darren Soothill
// Licensed under the MIT License

package hal

import "os"

// FileButton is a simulated operator button: the input reads as asserted
// while a trigger file exists. `touch` presses it, removing the file
// releases it.
type FileButton struct {
	path string
}

// NewFileButton creates a file-backed button.
func NewFileButton(path string) *FileButton {
	return &FileButton{path: path}
}

// Pressed reports whether the trigger file exists.
func (b *FileButton) Pressed() bool {
	_, err := os.Stat(b.path)
	return err == nil
}
