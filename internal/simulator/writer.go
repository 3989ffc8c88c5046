package simulator

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// OutputFiles names the files written for one batch.
type OutputFiles struct {
	TechEvents     string
	BusinessEvents string
	Rollups        string
}

// FilePrefix derives the output prefix from a city name, e.g. "Dream-City" -> "dream_city".
func FilePrefix(city string) string {
	return strings.ToLower(strings.ReplaceAll(city, "-", "_"))
}

// WriteBatch writes each record stream twice under dir: one JSON object per line,
// and a single JSON array in a sibling .array.json file.
func WriteBatch(dir, prefix string, batch Batch) (OutputFiles, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return OutputFiles{}, fmt.Errorf("create output dir: %w", err)
	}
	files := OutputFiles{
		TechEvents:     filepath.Join(dir, prefix+"_tech_events.jsonl"),
		BusinessEvents: filepath.Join(dir, prefix+"_business_events.jsonl"),
		Rollups:        filepath.Join(dir, prefix+"_rollup_flows.jsonl"),
	}
	if err := writeBoth(files.TechEvents, batch.TechEvents); err != nil {
		return OutputFiles{}, err
	}
	if err := writeBoth(files.BusinessEvents, batch.BusinessEvents); err != nil {
		return OutputFiles{}, err
	}
	if err := writeBoth(files.Rollups, batch.Rollups); err != nil {
		return OutputFiles{}, err
	}
	return files, nil
}

func writeBoth[T any](jsonlPath string, records []T) error {
	if err := WriteJSONL(jsonlPath, records); err != nil {
		return err
	}
	return WriteJSONArray(strings.TrimSuffix(jsonlPath, ".jsonl")+".array.json", records)
}

// WriteJSONL writes one JSON object per line.
func WriteJSONL[T any](path string, records []T) error {
	return writeFile(path, func(w *bufio.Writer) error {
		enc := json.NewEncoder(w)
		enc.SetEscapeHTML(false)
		for _, rec := range records {
			if err := enc.Encode(rec); err != nil {
				return err
			}
		}
		return nil
	})
}

// WriteJSONArray writes all records as one indented JSON array.
func WriteJSONArray[T any](path string, records []T) error {
	if records == nil {
		records = []T{}
	}
	return writeFile(path, func(w *bufio.Writer) error {
		enc := json.NewEncoder(w)
		enc.SetEscapeHTML(false)
		enc.SetIndent("", "  ")
		return enc.Encode(records)
	})
}

func writeFile(path string, body func(*bufio.Writer) error) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	w := bufio.NewWriter(f)
	if err := body(w); err != nil {
		f.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	if err := w.Flush(); err != nil {
		f.Close()
		return fmt.Errorf("flush %s: %w", path, err)
	}
	return f.Close()
}
