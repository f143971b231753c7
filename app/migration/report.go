package migration

import (
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

// WriteReport writes summary as YAML to path, or to stdout when path is "-".
func WriteReport(path string, summary Summary) error {
	if path == "-" {
		return EncodeReport(os.Stdout, summary)
	}

	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create report file: %w", err)
	}

	if err := EncodeReport(file, summary); err != nil {
		file.Close()
		return err
	}

	if err := file.Close(); err != nil {
		return fmt.Errorf("failed to close report file: %w", err)
	}
	return nil
}

func EncodeReport(w io.Writer, summary Summary) error {
	encoder := yaml.NewEncoder(w)
	encoder.SetIndent(2)

	if err := encoder.Encode(summary); err != nil {
		return fmt.Errorf("failed to encode report: %w", err)
	}
	if err := encoder.Close(); err != nil {
		return fmt.Errorf("failed to encode report: %w", err)
	}
	return nil
}
