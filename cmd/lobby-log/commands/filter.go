package commands

import (
	"fmt"
	"io"

	"github.com/lanlobby/lobby-go/pkg/log"
)

// RunFilter copies the events matching filter from paths to output and
// returns how many were written.
func RunFilter(paths []string, output string, filter log.Filter) (int, error) {
	reader, err := log.Open(filter, paths...)
	if err != nil {
		return 0, fmt.Errorf("failed to open log file: %w", err)
	}
	defer reader.Close()

	writer, err := log.NewFileLogger(output)
	if err != nil {
		return 0, fmt.Errorf("failed to create output file: %w", err)
	}

	count := 0
	for {
		event, err := reader.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			writer.Close()
			return count, fmt.Errorf("failed to read event: %w", err)
		}
		writer.Log(event)
		count++
	}

	if err := writer.Close(); err != nil {
		return count, fmt.Errorf("failed to close output file: %w", err)
	}
	return count, nil
}
