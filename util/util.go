package util

import (
	"archive/tar"
	"compress/gzip"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/hashicorp/go-hclog"
)

// HostCommandExists is a cross-platform check that a command can be executed
// on the host. It returns an error describing the missing command otherwise.
func HostCommandExists(command string) (bool, error) {
	if _, err := exec.LookPath(command); err != nil {
		return false, fmt.Errorf("command not found on host, command=%s, error=%w", command, err)
	}
	return true, nil
}

// TarGz archives and compresses the contents of sourceDir into destFileName.
// Entries are stored under the bundle's name, destFileName minus the .tar.gz
// suffix, so extraction produces a single directory.
func TarGz(sourceDir string, destFileName string) error {
	destFile, err := os.Create(destFileName)
	if err != nil {
		hclog.L().Error("TarGz", "error creating tarball", err)
		return err
	}
	defer destFile.Close()

	gzWriter := gzip.NewWriter(destFile)
	defer gzWriter.Close()

	tarWriter := tar.NewWriter(gzWriter)
	defer tarWriter.Close()

	bundleName := strings.TrimSuffix(filepath.Base(destFileName), ".tar.gz")

	return filepath.Walk(sourceDir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			return nil
		}

		rel, err := filepath.Rel(sourceDir, path)
		if err != nil {
			return err
		}

		sourceFile, err := os.Open(path)
		if err != nil {
			hclog.L().Error("TarGz", "error opening source file", err)
			return err
		}
		defer sourceFile.Close()

		header := &tar.Header{
			Name:    filepath.ToSlash(filepath.Join(bundleName, rel)),
			Size:    info.Size(),
			Mode:    int64(info.Mode()),
			ModTime: info.ModTime(),
		}

		if err := tarWriter.WriteHeader(header); err != nil {
			hclog.L().Error("TarGz", "error writing header for tar", err)
			return err
		}

		if _, err := io.Copy(tarWriter, sourceFile); err != nil {
			hclog.L().Error("TarGz", "error copying file to tarball", err)
			return err
		}
		return nil
	})
}

// WriteJSON converts an interface{} to JSON then writes to filePath.
func WriteJSON(iface interface{}, filePath string) error {
	jsonBts, err := InterfaceToJSON(iface)
	if err != nil {
		return err
	}
	err = JSONToFile(jsonBts, filePath)
	if err != nil {
		return err
	}
	return nil
}

// InterfaceToJSON converts an interface{} to JSON.
func InterfaceToJSON(mapVar interface{}) ([]byte, error) {
	InfoJSON, err := json.MarshalIndent(mapVar, "", "    ")
	if err != nil {
		hclog.L().Error("InterfaceToJSON", "message", err)
		return InfoJSON, err
	}

	return InfoJSON, err
}

// JSONToFile accepts JSON and an output file path to create a JSON file.
func JSONToFile(JSON []byte, outFile string) error {
	err := os.WriteFile(outFile, JSON, 0644)
	if err != nil {
		hclog.L().Error("JSONToFile", "error during json to file", err)
	}

	return err
}
