package helper

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/knights-analytics/hugot"
)

// ModelDir is where PrepareModel caches downloaded ONNX models.
var ModelDir = "./models"

// PrepareModel returns the local path of a Hugging Face model and downloads
// it into ModelDir on first use. onnxFilePath selects the ONNX file inside
// the repository when it holds more than one.
func PrepareModel(modelName string, onnxFilePath string) (string, error) {
	if strings.TrimSpace(modelName) == "" {
		return "", Wrap(ErrInvalidInput, "model name is empty")
	}

	modelPath := filepath.Join(ModelDir, strings.ReplaceAll(modelName, "/", "_"))
	if _, err := os.Stat(modelPath); err == nil {
		return modelPath, nil
	} else if !os.IsNotExist(err) {
		return "", fmt.Errorf("failed to stat model directory: %w", err)
	}

	if err := os.MkdirAll(ModelDir, 0750); err != nil {
		return "", fmt.Errorf("failed to create model directory: %w", err)
	}

	downloadOptions := hugot.NewDownloadOptions()
	if onnxFilePath != "" {
		downloadOptions.OnnxFilePath = onnxFilePath
	}
	downloadedPath, err := hugot.DownloadModel(modelName, ModelDir, downloadOptions)
	if err != nil {
		return "", fmt.Errorf("failed to download model %s: %w", modelName, err)
	}

	return downloadedPath, nil
}
