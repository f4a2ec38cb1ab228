package transfer

import (
	"encoding/base64"
	"fmt"
	"mime"
	"os"
	"path/filepath"
	"strings"

	"github.com/BioHazard786/Warpchat/internal/utils"
)

const defaultMIME = "application/octet-stream"

// File is a source file loaded into memory and encoded for sending.
type File struct {
	// Path is the absolute path to the file
	Path string

	// Name is the filename (without directory)
	Name string

	// Size is the raw file size in bytes
	Size int64

	// Type is the MIME type detected from the extension
	Type string

	// DataURL is the base64 data URL that gets chunked onto the wire
	DataURL string
}

// Stat validates a file path and enforces MaxFileSize without reading the
// file contents.
func Stat(path string) (*File, error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, WrapFileError("stat", path, ErrInvalidFile, err.Error())
	}

	stat, err := os.Stat(absPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, WrapFileError("stat", path, ErrInvalidFile, "file does not exist")
		}
		return nil, WrapFileError("stat", path, ErrInvalidFile, err.Error())
	}
	if stat.IsDir() {
		return nil, WrapFileError("stat", path, ErrInvalidFile, "is a directory")
	}
	if stat.Size() == 0 {
		return nil, WrapFileError("stat", path, ErrInvalidFile, "file is empty")
	}
	if stat.Size() > MaxFileSize {
		return nil, WrapFileError("stat", path, ErrFileTooLarge,
			fmt.Sprintf("%s > %s", utils.FormatSize(stat.Size()), utils.FormatSize(MaxFileSize)))
	}

	mimeType := mime.TypeByExtension(filepath.Ext(absPath))
	if mimeType == "" {
		mimeType = defaultMIME
	}

	return &File{
		Path: absPath,
		Name: filepath.Base(absPath),
		Size: stat.Size(),
		Type: mimeType,
	}, nil
}

// LoadFile validates path and reads it into a data URL ready for Split.
func LoadFile(path string) (*File, error) {
	f, err := Stat(path)
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(f.Path)
	if err != nil {
		return nil, NewFileError("read", f.Name, err)
	}
	if int64(len(data)) > MaxFileSize {
		return nil, NewFileError("read", f.Name, ErrFileTooLarge)
	}

	f.Size = int64(len(data))
	f.DataURL = EncodeDataURL(f.Type, data)
	return f, nil
}

// EncodeDataURL renders data as data:<mime>;base64,<payload>.
func EncodeDataURL(mimeType string, data []byte) string {
	if mimeType == "" {
		mimeType = defaultMIME
	}
	return "data:" + mimeType + ";base64," + base64.StdEncoding.EncodeToString(data)
}

// DecodeDataURL parses a base64 data URL back into its MIME type and bytes.
func DecodeDataURL(s string) (string, []byte, error) {
	rest, ok := strings.CutPrefix(s, "data:")
	if !ok {
		return "", nil, NewError("decode data URL", ErrInvalidDataURL)
	}
	meta, payload, ok := strings.Cut(rest, ",")
	if !ok {
		return "", nil, NewError("decode data URL", ErrInvalidDataURL)
	}

	mimeType, isBase64 := strings.CutSuffix(meta, ";base64")
	if !isBase64 {
		return "", nil, WrapFileError("decode data URL", "", ErrInvalidDataURL, "only base64 payloads are supported")
	}
	if mimeType == "" {
		mimeType = defaultMIME
	}

	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return "", nil, WrapFileError("decode data URL", "", ErrInvalidDataURL, err.Error())
	}
	return mimeType, data, nil
}

// SaveFile decodes a received data URL into dir, picking a unique filename.
// Only the base name of the sender-supplied name is used.
func SaveFile(dir, name, dataURL string) (string, error) {
	_, data, err := DecodeDataURL(dataURL)
	if err != nil {
		return "", err
	}

	base := filepath.Base(filepath.Clean("/" + name))
	if base == "/" || base == "." {
		base = "download"
	}

	if dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return "", NewFileError("create directory", dir, err)
		}
	}

	target := utils.GetUniqueFilename(filepath.Join(dir, base))
	if err := os.WriteFile(target, data, 0644); err != nil {
		return "", NewFileError("write", base, err)
	}
	return target, nil
}
